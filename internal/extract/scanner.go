package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

// ErrMalicious 表示 clamd 判定文件含有病毒。
var ErrMalicious = errors.New("malicious file detected")

// Scanner 通过 clamd 扫描上传内容；地址为空时跳过扫描。
type Scanner struct {
	addr string
}

// NewScanner 构造 Scanner。
func NewScanner(addr string) *Scanner {
	return &Scanner{addr: strings.TrimSpace(addr)}
}

// Enabled 表示是否配置了 clamd。
func (s *Scanner) Enabled() bool {
	return s != nil && s.addr != ""
}

// Scan 扫描给定字节，发现病毒时返回 ErrMalicious。
func (s *Scanner) Scan(data []byte) error {
	if !s.Enabled() {
		return nil
	}

	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for result := range results {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("%w: %s", ErrMalicious, result.Description)
		}
	}
	return nil
}
