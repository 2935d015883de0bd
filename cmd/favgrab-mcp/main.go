package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/favgrab/iconurl"
)

// faviconResponse mirrors GET /api/favicon. It covers both the metadata
// body and the fallback body; errors carry only Error and Code.
type faviconResponse struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Author      string  `json:"author"`
	Publisher   string  `json:"publisher"`
	Date        string  `json:"date"`
	URL         string  `json:"url"`
	Image       string  `json:"image"`
	Logo        *string `json:"logo"`
	Favicon     string  `json:"favicon"`
	Fallback    bool    `json:"fallback"`
	Error       string  `json:"error"`
	Code        string  `json:"code"`
}

func main() {
	apiURL := os.Getenv("FAVGRAB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FAVGRAB_API_KEY")

	s := server.NewMCPServer(
		"favgrab",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	getFaviconTool := mcp.NewTool("get_favicon",
		mcp.WithDescription("Find the favicon and logo of a website, plus its title, description, author, publisher, date, canonical URL and preview image. Falls back to /favicon.ico when the page cannot be fetched."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Website address, e.g. 'github.com' or 'https://example.com/page'"),
		),
		mcp.WithString("fields",
			mcp.Description("Comma-separated subset of fields to extract, e.g. 'favicon,logo'. Default: all."),
		),
	)
	s.AddTool(getFaviconTool, handleGetFavicon(apiURL, apiKey))

	serviceIconTool := mcp.NewTool("favicon_service_url",
		mcp.WithDescription("Return the favicon image-service URL for a website without fetching anything."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Website address"),
		),
		mcp.WithNumber("size",
			mcp.Description("Icon edge in pixels, 16-256 (default: 32)"),
		),
	)
	s.AddTool(serviceIconTool, handleServiceURL())

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet sends a GET request to the favgrab API and returns status and body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string, query url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func handleGetFavicon(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		q := url.Values{}
		q.Set("url", target)
		if fields := request.GetString("fields", ""); fields != "" {
			q.Set("fields", fields)
		}

		status, body, err := apiGet(ctx, client, apiURL, apiKey, "/api/favicon", q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var fr faviconResponse
		if err := json.Unmarshal(body, &fr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if status != http.StatusOK {
			msg := fr.Error
			if msg == "" {
				msg = fmt.Sprintf("HTTP %d", status)
			}
			if fr.Code != "" {
				msg = fmt.Sprintf("[%s] %s", fr.Code, msg)
			}
			return mcp.NewToolResultError(msg), nil
		}

		return mcp.NewToolResultText(formatFavicon(&fr)), nil
	}
}

func formatFavicon(fr *faviconResponse) string {
	var sb strings.Builder
	line := func(label, v string) {
		if v != "" {
			sb.WriteString(label + ": " + v + "\n")
		}
	}
	line("Favicon", fr.Favicon)
	if fr.Logo != nil {
		line("Logo", *fr.Logo)
	}
	line("Title", fr.Title)
	line("Description", fr.Description)
	line("Author", fr.Author)
	line("Publisher", fr.Publisher)
	line("Date", fr.Date)
	line("URL", fr.URL)
	line("Image", fr.Image)
	if fr.Fallback {
		sb.WriteString("\nThe page could not be fetched; the favicon is the conventional /favicon.ico guess.")
		if fr.Error != "" {
			sb.WriteString(" (" + fr.Error + ")")
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "No icon or metadata found."
	}
	return sb.String()
}

func handleServiceURL() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		size := int(request.GetFloat("size", iconurl.DefaultSize))

		icon, err := iconurl.ClientIcon(target, size)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err)), nil
		}
		return mcp.NewToolResultText(icon), nil
	}
}
