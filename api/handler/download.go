package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/engine"
	"github.com/use-agent/favgrab/logging"
	"github.com/use-agent/favgrab/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DownloadOptions configures the icon download proxy.
type DownloadOptions struct {
	MaxBytes int64
	Timeout  time.Duration

	// BlockPrivate refuses private hosts as the src and as any redirect hop.
	BlockPrivate bool

	// Client is used for the upstream fetch. Nil means engine.NewClient.
	// Its redirect policy is replaced to honour BlockPrivate.
	Client *http.Client
}

// Download returns a handler for GET /api/favicon/download?src=<icon url>.
//
// It fetches the icon server-side and returns it as an attachment named
// favicon.<ext>, so the page can save icons from hosts that refuse
// cross-origin reads. The body must sniff as an image.
func Download(opts DownloadOptions) gin.HandlerFunc {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	var client *http.Client
	if opts.Client != nil {
		client = engine.GuardRedirects(opts.Client, opts.BlockPrivate)
	} else {
		client = engine.NewClient(opts.BlockPrivate)
	}

	return func(c *gin.Context) {
		src, err := parseIconSource(c.Query("src"))
		if err != nil {
			respondError(c, err)
			return
		}
		if opts.BlockPrivate && engine.IsPrivateHost(src.Hostname()) {
			respondError(c, errBlockedHost(nil))
			return
		}

		body, err := fetchIcon(c.Request.Context(), client, src.String(), opts)
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn("icon download failed", "src", src.String(), "error", err)
			respondError(c, err)
			return
		}

		mt := mimetype.Detect(body)
		if !isImage(mt) {
			c.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{
				Error: fmt.Sprintf("not an image: %s", mt.String()),
				Code:  models.ErrCodeFetchFailed,
			})
			return
		}

		if cfg, _, err := image.DecodeConfig(bytes.NewReader(body)); err == nil {
			c.Header("X-Icon-Width", strconv.Itoa(cfg.Width))
			c.Header("X-Icon-Height", strconv.Itoa(cfg.Height))
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="favicon%s"`, extensionFor(mt)))
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, mt.String(), body)
	}
}

func parseIconSource(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.NewLookupError(models.ErrCodeInvalidInput, "src parameter is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewLookupError(models.ErrCodeInvalidInput, "src must be an absolute http(s) URL", err)
	}
	return u, nil
}

func fetchIcon(ctx context.Context, client *http.Client, src string, opts DownloadOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, models.NewLookupError(models.ErrCodeInvalidInput, "invalid src", err)
	}
	req.Header.Set("User-Agent", engine.UserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, engine.ErrPrivateRedirect) {
			return nil, errBlockedHost(err)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, models.NewLookupError(models.ErrCodeFetchTimeout, "icon download timed out", err)
		}
		return nil, models.NewLookupError(models.ErrCodeFetchFailed, "icon download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewLookupError(models.ErrCodeFetchFailed,
			fmt.Sprintf("icon host answered HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes+1))
	if err != nil {
		return nil, models.NewLookupError(models.ErrCodeFetchFailed, "reading icon failed", err)
	}
	if int64(len(body)) > opts.MaxBytes {
		return nil, models.NewLookupError(models.ErrCodeFetchFailed,
			fmt.Sprintf("icon exceeds %d bytes", opts.MaxBytes), nil)
	}
	return body, nil
}

func errBlockedHost(cause error) error {
	return models.NewLookupError(models.ErrCodeBlockedHost, "refusing to fetch a private or loopback address", cause)
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func extensionFor(mt *mimetype.MIME) string {
	if ext := mt.Extension(); ext != "" {
		return ext
	}
	return ".ico"
}
