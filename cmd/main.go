package main

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Speedtest_Selector_Go/internal/config"
	"Speedtest_Selector_Go/internal/engine"
	"Speedtest_Selector_Go/internal/history"
	"Speedtest_Selector_Go/internal/output"
	"Speedtest_Selector_Go/internal/server"
	"Speedtest_Selector_Go/internal/tester"
	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

//go:embed default_config.yaml
var defaultConfigData []byte

// ensureFile 检查文件是否存在于可执行文件目录，如果不存在，则使用提供的默认数据创建它。
func ensureFile(fileName string, defaultData []byte) (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("无法获取可执行文件路径: %w", err)
	}
	exeDir := filepath.Dir(exePath)
	filePath := filepath.Join(exeDir, fileName)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.WriteFile(filePath, defaultData, 0644); err != nil {
			return "", fmt.Errorf("无法写入默认文件 %s: %w", fileName, err)
		}
		util.S.Infof("首次运行，已在 %s 生成默认 %s 文件", exeDir, fileName)
	} else if err != nil {
		return "", fmt.Errorf("检查文件 %s 时出错: %w", fileName, err)
	}
	return filePath, nil
}

type cliOptions struct {
	country     string
	selection   engine.Selection
	interactive bool
	list        bool
	noColor     bool
}

func main() {
	// 定义命令行标志
	cliMode := flag.Bool("cli", false, "以命令行模式运行")
	cfgFlag := flag.String("config", "", "配置文件路径，默认使用程序目录下的 config.yaml")
	country := flag.String("country", "", "只使用该国家代码的服务器，覆盖配置中的 country_code")
	index := flag.Int("index", 0, "按序号 (从 1 开始) 指定测速服务器，不指定时自动选择最近的服务器")
	interactive := flag.Bool("interactive", false, "列出候选服务器并从标准输入选择")
	list := flag.Bool("list", false, "只列出候选服务器，不测速")
	noColor := flag.Bool("no-color", false, "输出结果时不使用颜色")
	listenPort := flag.Int("port", 0, "Web 模式监听端口，覆盖配置中的 listen_port")
	noBrowser := flag.Bool("no-browser", false, "Web 模式下不自动打开浏览器")
	flag.Parse()

	// 加载配置前先使用默认日志级别
	if err := util.SetupLog("info"); err != nil {
		fatal("初始化日志失败", err)
	}

	// -index 只要出现就按显式序号处理，-index 0 会被判为无效
	selection := engine.Automatic()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "index" {
			selection = engine.Explicit(*index)
		}
	})

	cfgPath := *cfgFlag
	if cfgPath == "" {
		var err error
		cfgPath, err = ensureFile("config.yaml", defaultConfigData)
		if err != nil {
			fatal("初始化配置文件失败", err)
		}
	}
	exeDir := filepath.Dir(cfgPath)

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fatal("加载配置文件失败", err)
	}
	if err := util.SetupLog(cfg.LogLevel); err != nil {
		fatal("初始化日志失败", err)
	}
	defer util.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openHistory(cfg, exeDir)
	if err != nil {
		// 历史记录不是必需的
		util.S.Warnw("历史记录不可用", "err", err)
	} else {
		defer store.Close()
	}

	if *cliMode || *list || *interactive {
		// --- 命令行模式 ---
		opts := cliOptions{
			country:     *country,
			selection:   selection,
			interactive: *interactive,
			list:        *list,
			noColor:     *noColor,
		}
		if err := runCli(ctx, cfg, exeDir, store, opts); err != nil {
			util.L.Sync()
			fatal("运行失败", err)
		}
		return
	}

	// --- Web 服务器模式 (默认) ---
	port := cfg.ListenPort
	if *listenPort > 0 {
		port = *listenPort
	}
	if err := server.New(cfgPath, exeDir, store).Start(ctx, port, !*noBrowser); err != nil {
		fatal("Web 服务器退出", err)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

// openHistory 打开历史数据库，相对路径基于程序所在目录
func openHistory(cfg *config.Config, exeDir string) (*history.Store, error) {
	if cfg.HistoryPath == "" {
		return nil, errors.New("history_path is empty")
	}
	path := cfg.HistoryPath
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(exeDir, path)
	}
	return history.Open(path)
}

// transferProgress 在终端上绘制测速进度条
func transferProgress(dir tester.Direction, done, total int, mbps float64) {
	label := "下载"
	if dir == tester.Upload {
		label = "上传"
	}
	fmt.Fprint(os.Stderr, output.ProgressBar(label, done, total, 40, fmt.Sprintf("%8.2f Mbps", mbps)))
	if done >= total {
		fmt.Fprintln(os.Stderr)
	}
}

// runCli 命令行模式的执行逻辑
func runCli(ctx context.Context, cfg *config.Config, exeDir string, store *history.Store, opts cliOptions) error {
	util.S.Info("--- 以命令行模式运行 ---")

	// 定义日志回调函数
	progressCallback := func(message string) {
		util.S.Info(message)
	}
	session := engine.NewSession(cfg, progressCallback, transferProgress)

	var (
		result *model.FinalResult
		err    error
	)
	switch {
	case opts.list:
		ranked, err := session.Candidates(ctx, opts.country)
		if err != nil {
			return err
		}
		fmt.Print(output.FormatCandidates(ranked))
		return nil
	case opts.interactive:
		result, err = runInteractive(ctx, session, opts.country)
	default:
		result, err = session.Run(ctx, opts.country, opts.selection)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n服务器: %s (%s, %s) 距离 %.1f km\n", result.Server.Name, result.Server.Country, result.Server.Endpoint, result.Server.DistanceKm)
	fmt.Println(output.FormatResult(result.MeasurementResult, !opts.noColor))

	if store != nil {
		if err := store.Save(*result); err != nil {
			util.S.Warnw("保存历史记录失败", "run_id", result.RunID, "err", err)
		}
	}

	stamp := result.MeasuredAt.Local().Format("20060102_150405")
	resultJSONFile := filepath.Join(exeDir, fmt.Sprintf("result_%s.json", stamp))
	resultCSVFile := filepath.Join(exeDir, fmt.Sprintf("result_%s.csv", stamp))
	if err := output.WriteAll(resultJSONFile, resultCSVFile, []model.FinalResult{*result}); err != nil {
		return err
	}
	util.S.Infof("结果已成功写入 %s 和 %s", resultJSONFile, resultCSVFile)

	util.S.Info("--- 所有任务已完成 ---")
	return nil
}

// runInteractive 列出候选服务器，读取用户输入的序号后测速。直接回车表示自动选择。
func runInteractive(ctx context.Context, session *engine.Session, country string) (*model.FinalResult, error) {
	start := time.Now()
	ranked, err := session.Candidates(ctx, country)
	if err != nil {
		return nil, err
	}
	util.S.Debugw("候选服务器已就绪", "count", len(ranked), "elapsed", time.Since(start))

	fmt.Print(output.FormatCandidates(ranked))
	fmt.Printf("请输入服务器序号 [1-%d]，直接回车自动选择: ", len(ranked))

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("读取输入失败: %w", err)
	}
	sel, err := parseSelection(line)
	if err != nil {
		return nil, err
	}

	chosen, err := engine.Select(ranked, sel)
	if err != nil {
		return nil, err
	}
	result := session.Measure(ctx, chosen)
	return &result, nil
}

// parseSelection 将用户输入转换为 Selection
func parseSelection(input string) (engine.Selection, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return engine.Automatic(), nil
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return engine.Selection{}, fmt.Errorf("%w: %q is not a number", engine.ErrInvalidSelection, input)
	}
	return engine.Explicit(n), nil
}
