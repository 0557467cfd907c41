package render

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 at 96 dpi.
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	a4WidthPx  = 794
	a4HeightPx = 1123
)

// Chrome converts HTML with a headless Chrome started per conversion.
type Chrome struct {
	ExecPath    string
	JPEGQuality int64
}

func NewChrome(execPath string) *Chrome {
	return &Chrome{ExecPath: execPath, JPEGQuality: 90}
}

func (c *Chrome) Convert(ctx context.Context, html string) ([]byte, []byte, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pdf, jpeg []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(a4WidthPx, a4HeightPx),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			jpeg, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(c.JPEGQuality).
				WithClip(&page.Viewport{X: 0, Y: 0, Width: a4WidthPx, Height: a4HeightPx, Scale: 1}).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("headless chrome: %w", err)
	}
	return pdf, jpeg, nil
}
