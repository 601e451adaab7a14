package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"Speedtest_Selector_Go/internal/config"
	"Speedtest_Selector_Go/internal/datasource"
	"Speedtest_Selector_Go/internal/engine"
	"Speedtest_Selector_Go/internal/history"
	"Speedtest_Selector_Go/internal/metrics"
	"Speedtest_Selector_Go/internal/output"
	"Speedtest_Selector_Go/internal/tester"
	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

//go:embed web
var embeddedFS embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Server 持有 Web 模式下各处理器共享的依赖
type Server struct {
	cfgPath string
	exeDir  string
	store   *history.Store // 可以为 nil

	mu         sync.Mutex
	fetcher    *datasource.Fetcher
	fetcherKey string
}

// fetcherFor 返回与当前服务器列表配置对应的 Fetcher，配置不变时复用以共享缓存
func (s *Server) fetcherFor(cfg *config.Config) *datasource.Fetcher {
	key := fmt.Sprintf("%s|%s|%s", cfg.RegistryURL, cfg.RegistryFallbackURL, cfg.RegistryCacheTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetcher == nil || s.fetcherKey != key {
		s.fetcher = engine.NewFetcher(cfg, &http.Client{Timeout: 30 * time.Second})
		s.fetcherKey = key
	}
	return s.fetcher
}

// New 创建 Server，store 为 nil 时不保存历史
func New(cfgPath, exeDir string, store *history.Store) *Server {
	return &Server{cfgPath: cfgPath, exeDir: exeDir, store: store}
}

// Handler 返回注册了所有路由的 http.Handler
func (s *Server) Handler() (http.Handler, error) {
	// Create a sub-filesystem to remove the "web" prefix
	staticFS, err := fs.Sub(embeddedFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		content, err := fs.ReadFile(staticFS, "index.html")
		if err != nil {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", time.Now(), bytes.NewReader(content))
	})

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/servers", s.handleServers)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws/run", s.handleWebSocket)
	return mux, nil
}

// Start 启动 Web 服务器，阻塞直到 ctx 结束或服务器出错
func (s *Server) Start(ctx context.Context, port int, openBrowserOnStart bool) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{Addr: addr, Handler: handler}
	util.S.Infof("服务器正在启动，请在浏览器中打开 http://%s", addr)

	if openBrowserOnStart {
		// 尝试在默认浏览器中打开 URL
		go openBrowser(fmt.Sprintf("http://127.0.0.1:%d", port))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("服务器启动失败: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := config.LoadConfig(s.cfgPath)
		if err != nil {
			http.Error(w, "Failed to load config", http.StatusInternalServerError)
			return
		}
		// 经过 YAML 转换，让时长字段保持 "2s" 这样的写法
		view, err := configView(cfg)
		if err != nil {
			http.Error(w, "Failed to encode config", http.StatusInternalServerError)
			return
		}
		writeJSON(w, view)
	case http.MethodPost:
		var newConfig map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := saveConfigWithComments(s.cfgPath, newConfig); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errInvalidConfig) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("Failed to save config: %v", err), status)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleServers 返回可达的候选服务器，供页面上的交互式选择使用
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		http.Error(w, "Failed to load config", http.StatusInternalServerError)
		return
	}
	session := engine.NewSession(cfg, nil, nil, engine.WithFetcher(s.fetcherFor(cfg)))
	ranked, err := session.Candidates(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, ranked)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []model.FinalResult{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	results, err := s.store.List(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// RunRequest 是客户端通过 WebSocket 发来的第一条消息。Index 为空时自动选择最近的服务器。
type RunRequest struct {
	Country string `json:"country"`
	Index   *int   `json:"index"`
}

func (r RunRequest) selection() engine.Selection {
	if r.Index == nil {
		return engine.Automatic()
	}
	return engine.Explicit(*r.Index)
}

// WebSocketMessage 是服务端推送的消息
type WebSocketMessage struct {
	Type    string      `json:"type"` // "log", "progress", "result" or "error"
	Payload interface{} `json:"payload"`
}

// TransferProgress 是 "progress" 消息的内容
type TransferProgress struct {
	Direction string  `json:"direction"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Mbps      float64 `json:"mbps"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.S.Warnw("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// 1. Wait for the run request from the client
	var req RunRequest
	if err := conn.ReadJSON(&req); err != nil {
		util.S.Warnw("WebSocket read for run request failed", "err", err)
		return
	}

	runConfig, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		conn.WriteJSON(WebSocketMessage{Type: "error", Payload: fmt.Sprintf("Failed to load config: %v", err)})
		return
	}

	// 2. Create a context that is cancelled if the client disconnects
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				util.S.Debugw("Client disconnected", "err", err)
				return
			}
		}
	}()

	// 3. 只有写协程会写连接
	writeChan := make(chan WebSocketMessage, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range writeChan {
			if err := conn.WriteJSON(msg); err != nil {
				util.S.Warnw("WebSocket write error", "err", err)
				cancel()
				// 继续读空通道，避免发送方阻塞
				for range writeChan {
				}
				return
			}
		}
	}()

	send := func(msg WebSocketMessage) {
		select {
		case <-ctx.Done():
		case writeChan <- msg:
		}
	}
	progressCallback := func(message string) {
		send(WebSocketMessage{Type: "log", Payload: message})
	}
	transferCallback := func(dir tester.Direction, done, total int, mbps float64) {
		send(WebSocketMessage{Type: "progress", Payload: TransferProgress{Direction: dir.String(), Done: done, Total: total, Mbps: mbps}})
	}

	// 4. Run the engine in the handler goroutine
	session := engine.NewSession(runConfig, progressCallback, transferCallback, engine.WithFetcher(s.fetcherFor(runConfig)))
	result, err := session.Run(ctx, req.Country, req.selection())
	if err != nil {
		util.S.Warnw("引擎运行时出错", "err", err)
		send(WebSocketMessage{Type: "error", Payload: err.Error()})
	} else {
		s.persist(*result, progressCallback)
		send(WebSocketMessage{Type: "result", Payload: result})
	}

	progressCallback("--- 任务完成 ---")
	close(writeChan)
	<-writerDone
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// persist 保存历史记录和结果文件，失败只记录日志
func (s *Server) persist(result model.FinalResult, progressCb engine.ProgressCallback) {
	if s.store != nil {
		if err := s.store.Save(result); err != nil {
			util.S.Warnw("保存历史记录失败", "run_id", result.RunID, "err", err)
		}
	}

	jsonFile := filepath.Join(s.exeDir, "web_result.json")
	csvFile := filepath.Join(s.exeDir, "web_result.csv")
	if err := output.WriteAll(jsonFile, csvFile, []model.FinalResult{result}); err != nil {
		util.S.Warnw("保存结果文件失败", "err", err)
		progressCb(fmt.Sprintf("错误: 保存结果文件失败: %v", err))
		return
	}
	progressCb(fmt.Sprintf("结果已保存到 %s 和 %s", jsonFile, csvFile))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.S.Warnw("encode response failed", "err", err)
	}
}

// configView 将配置转换为与 config.yaml 写法一致的 map
func configView(cfg *config.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	view := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return view, nil
}

var errInvalidConfig = errors.New("invalid config")

// saveConfigWithComments 只更新文件中已有的键，保留注释。新配置无效时不写入。
func saveConfigWithComments(cfgPath string, newValues map[string]interface{}) error {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return fmt.Errorf("%w: empty config file", errInvalidConfig)
	}

	// yaml.v3 unmarshals to a document node, we need the content
	docNode := root.Content[0]

	// Iterate through the key-value pairs of the mapping node
	for i := 0; i+1 < len(docNode.Content); i += 2 {
		keyNode := docNode.Content[i]
		valNode := docNode.Content[i+1]

		if newValue, ok := newValues[keyNode.Value]; ok {
			// Update the value node with the new value
			setNodeValue(valNode, newValue)
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return err
	}

	check := config.Default()
	if err := yaml.Unmarshal(out, check); err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	return os.WriteFile(cfgPath, out, 0644)
}

// openBrowser tries to open the URL in a default browser.
func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}
	if err != nil {
		util.S.Infof("无法自动打开浏览器: %v，请手动打开 %s", err, url)
	}
}

// setNodeValue updates a yaml.Node's value based on the provided interface{}.
// It handles basic types and slices.
func setNodeValue(node *yaml.Node, value interface{}) {
	if slice, isSlice := value.([]interface{}); isSlice {
		node.Kind = yaml.SequenceNode
		node.Tag = "!!seq"
		node.Content = []*yaml.Node{}
		for _, item := range slice {
			itemNode := &yaml.Node{}
			// Recursively set value for items in slice
			setNodeValue(itemNode, item)
			node.Content = append(node.Content, itemNode)
		}
		return
	}
	if value == nil {
		node.Kind = yaml.ScalarNode
		node.Tag = "!!null"
		node.Value = ""
		return
	}

	// For simple scalar values
	s := fmt.Sprintf("%v", value)
	node.Value = s
	node.Kind = yaml.ScalarNode
	node.Style = 0

	// Heuristic to guess the tag
	if s == "true" || s == "false" {
		node.Tag = "!!bool"
	} else if _, err := strToInt(s); err == nil {
		node.Tag = "!!int"
	} else if _, err := strToFloat(s); err == nil {
		node.Tag = "!!float"
	} else {
		node.Tag = "!!str"
	}
}

func strToFloat(s string) (float64, error) {
	var f float64
	// Use json unmarshaling to handle number parsing robustly
	return f, json.Unmarshal([]byte(s), &f)
}

func strToInt(s string) (int, error) {
	var i int
	// Use json unmarshaling to handle integer parsing robustly
	return i, json.Unmarshal([]byte(s), &i)
}
