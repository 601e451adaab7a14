package history

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"Speedtest_Selector_Go/pkg/model"
)

const (
	keyPrefix = "result:"
	timeIndex = "by_time"
)

// ErrNotFound 指定的运行记录不存在
var ErrNotFound = errors.New("history: result not found")

// entry 是写入数据库的结构，unix_nano 用于按时间排序
type entry struct {
	Result   model.FinalResult `json:"result"`
	UnixNano int64             `json:"unix_nano"`
}

// Store 使用 buntdb 保存测速历史，path 为 ":memory:" 时只保存在内存中
type Store struct {
	db *buntdb.DB
}

// Open 打开（或创建）历史数据库
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开历史数据库 '%s' 失败: %w", path, err)
	}
	if err := db.CreateIndex(timeIndex, keyPrefix+"*", buntdb.IndexJSON("unix_nano")); err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("创建索引失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Save 保存一条结果，RunID 相同时覆盖
func (s *Store) Save(res model.FinalResult) error {
	if res.RunID == "" {
		return errors.New("history: empty run id")
	}
	data, err := json.Marshal(entry{Result: res, UnixNano: res.MeasuredAt.UnixNano()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyPrefix+res.RunID, string(data), nil)
		return err
	})
}

// Get 按 RunID 读取一条结果
func (s *Store) Get(runID string) (model.FinalResult, error) {
	var e entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(keyPrefix + runID)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &e)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return model.FinalResult{}, ErrNotFound
	}
	return e.Result, err
}

// List 按测量时间倒序返回最多 limit 条结果，limit <= 0 表示全部
func (s *Store) List(limit int) ([]model.FinalResult, error) {
	results := []model.FinalResult{}
	var decodeErr error
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend(timeIndex, func(key, value string) bool {
			var e entry
			if err := json.Unmarshal([]byte(value), &e); err != nil {
				decodeErr = fmt.Errorf("解析历史记录 %s 失败: %w", key, err)
				return false
			}
			results = append(results, e.Result)
			return limit <= 0 || len(results) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return results, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}
