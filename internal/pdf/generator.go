// Package pdf 使用 go-rod 在无头浏览器中把 HTML 转换为 PDF 或预览图。
package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const pageTimeout = 30 * time.Second

// A4 @ 96 DPI
const (
	a4WidthPx  = 794
	a4HeightPx = 1123
)

// Renderer 把 HTML 渲染为二进制产物，worker 通过该接口调用以便测试替换。
type Renderer interface {
	PDF(html string) ([]byte, error)
	Screenshot(html string, quality int) ([]byte, error)
}

// Chromium 每次调用都启动独立的无头浏览器。
type Chromium struct{}

// PDF 实现 Renderer。
func (Chromium) PDF(html string) ([]byte, error) {
	return GeneratePDFFromHTML(html)
}

// Screenshot 实现 Renderer。
func (Chromium) Screenshot(html string, quality int) ([]byte, error) {
	return ScreenshotFromHTML(html, quality)
}

// GeneratePDFFromHTML 渲染 HTML 并返回 PDF 字节。
func GeneratePDFFromHTML(htmlContent string) ([]byte, error) {
	var data []byte
	err := withPage(htmlContent, func(page *rod.Page) error {
		reader, err := page.PDF(&proto.PagePrintToPDF{
			PrintBackground:   true,
			PreferCSSPageSize: true,
		})
		if err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		defer func() {
			_ = reader.Close()
		}()

		data, err = io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read pdf bytes: %w", err)
		}
		return nil
	})
	return data, err
}

// ScreenshotFromHTML 渲染 HTML 并返回首屏 A4 区域的 JPEG 截图。
func ScreenshotFromHTML(htmlContent string, quality int) ([]byte, error) {
	var data []byte
	err := withPage(htmlContent, func(page *rod.Page) error {
		var err error
		data, err = page.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
		})
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		return nil
	})
	return data, err
}

func withPage(htmlContent string, fn func(page *rod.Page) error) error {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(pageTimeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(pageTimeout)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             a4WidthPx,
		Height:            a4HeightPx,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}

	return fn(page)
}
