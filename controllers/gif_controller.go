package controllers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/moodboard/config"
	"github.com/cppla/moodboard/utils"
)

const (
	gifCacheTTL     = 5 * time.Minute
	maxUpstreamBody = 4 << 20
)

var gifEndpoints = map[string]bool{"search": true, "trending": true}

// GifController proxies GIF searches so the API key stays on the server.
type GifController struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewGifController builds a proxy from configuration. A nil client means a 10s-timeout default.
func NewGifController(cfg config.AppConfig, client *http.Client) *GifController {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GifController{
		client:  client,
		baseURL: strings.TrimRight(cfg.GiphyBaseURL, "/"),
		apiKey:  cfg.GiphyAPIKey,
	}
}

// Proxy forwards ?endpoint=search|trending with the remaining query parameters.
func (g *GifController) Proxy(ctx *gin.Context) {
	endpoint := strings.TrimSpace(ctx.Query("endpoint"))
	if endpoint == "" {
		utils.Error(ctx, http.StatusBadRequest, 40020, "endpoint parameter is required")
		return
	}
	if !gifEndpoints[endpoint] {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid endpoint")
		return
	}

	query := ctx.Request.URL.Query()
	query.Del("endpoint")
	if query.Get("api_key") == "" && g.apiKey != "" {
		query.Set("api_key", g.apiKey)
	}
	encoded := query.Encode() // sorted by key

	sum := sha256.Sum256([]byte(encoded))
	key := fmt.Sprintf("cache:giphy:%s:%s", endpoint, hex.EncodeToString(sum[:]))
	if b, ok := utils.CacheGetBytes(key); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	req, err := http.NewRequestWithContext(ctx.Request.Context(), http.MethodGet, g.baseURL+"/"+endpoint+"?"+encoded, nil)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "server error")
		return
	}
	resp, err := g.client.Do(req)
	if err != nil {
		utils.Logger.Warn("giphy request failed", zap.String("endpoint", endpoint), zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50201, "failed to fetch from giphy")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		utils.Logger.Warn("giphy response read failed", zap.String("endpoint", endpoint), zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50201, "failed to fetch from giphy")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if resp.StatusCode == http.StatusOK {
		utils.CacheSetBytes(key, body, gifCacheTTL)
	}
	ctx.Data(resp.StatusCode, contentType, body)
}
