// Package monitor 執行期監控：goroutine、heap、GC 的即時圖表（statsviz）。
//
// 監控使用獨立端口，不和房間服務共用 mux。
package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/arl/statsviz"
)

// Path 監控頁面路徑
const Path = "/debug/statsviz/"

// NewServer 創建監控服務器，監聽 0.0.0.0:port
func NewServer(port int) (*http.Server, error) {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return nil, fmt.Errorf("註冊 statsviz 失敗: %w", err)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
