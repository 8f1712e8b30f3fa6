package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"tradewise/internal/analysis/indicator"
	"tradewise/internal/importer"
	"tradewise/internal/logger"
	"tradewise/internal/portfolio"
	"tradewise/internal/report"
	"tradewise/internal/store"
	syncsvc "tradewise/internal/sync"

	"github.com/gin-gonic/gin"
)

// Router 组合查询、导入与同步触发的路由集合。
type Router struct {
	Store    store.Store
	Sync     *syncsvc.Service
	Importer *importer.Service
	Renderer *report.Renderer
}

// NewRouter 构造 API router。
func NewRouter(st store.Store, sync *syncsvc.Service, imp *importer.Service, renderer *report.Renderer) *Router {
	return &Router{Store: st, Sync: sync, Importer: imp, Renderer: renderer}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/assets", r.handleAssets)
	group.POST("/assets/sync/:symbol", r.handleSyncSymbol)
	group.GET("/sync/runs", r.handleSyncRuns)
	group.POST("/transactions/import", r.handleImportTransactions)
	group.GET("/portfolio/summary", r.handlePortfolioSummary)
	group.GET("/portfolio/equity-curve", r.handleEquityCurve)
	group.GET("/charts/:symbol", r.handleChart)
	group.GET("/report/equity", r.handleEquityReport)
	group.GET("/report/kline/:symbol", r.handleKlineReport)
}

func (r *Router) handleAssets(c *gin.Context) {
	assets, err := r.Store.Assets(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] list assets failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets, "count": len(assets)})
}

func (r *Router) handleSyncSymbol(c *gin.Context) {
	if r.Sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "同步服务未启用"})
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	assetType := c.DefaultQuery("type", "stock")
	name := strings.TrimSpace(c.Query("name"))

	res, err := r.Sync.SyncSymbol(c.Request.Context(), symbol, assetType, name)
	if err != nil {
		logger.Errorf("[api] sync %s failed ip=%s err=%v", symbol, c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "run_id": res.RunID})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleSyncRuns(c *gin.Context) {
	if r.Sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "同步服务未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	runs, err := r.Sync.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleImportTransactions 接收 CSV 流水。优先取 multipart 的 file 字段，
// 没有再退回请求体。
func (r *Router) handleImportTransactions(c *gin.Context) {
	if r.Importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "导入服务未启用"})
		return
	}
	file, _, err := c.Request.FormFile("file")
	var res importer.Result
	if err == nil {
		defer file.Close()
		res, err = r.Importer.ImportCSV(c.Request.Context(), file)
	} else {
		res, err = r.Importer.ImportCSV(c.Request.Context(), c.Request.Body)
	}
	if err != nil {
		logger.Errorf("[api] import transactions failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] import transactions ip=%s imported=%d skipped=%d filtered=%d",
		c.ClientIP(), res.Imported, res.SkippedDuplicates, res.FilteredNonTrading)
	c.JSON(http.StatusOK, res)
}

func (r *Router) handlePortfolioSummary(c *gin.Context) {
	snap, err := r.Store.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, portfolio.New(snap).Summarize())
}

func (r *Router) handleEquityCurve(c *gin.Context) {
	snap, err := r.Store.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	curve := portfolio.New(snap).EquityCurve()
	c.JSON(http.StatusOK, gin.H{"points": curve, "count": len(curve)})
}

func (r *Router) handleChart(c *gin.Context) {
	ctx := c.Request.Context()
	symbol := strings.TrimSpace(c.Param("symbol"))
	adjust := strings.ToLower(c.DefaultQuery("adjust", "qfq"))
	switch adjust {
	case "raw", "qfq", "hfq":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "adjust 仅支持 raw/qfq/hfq"})
		return
	}

	asset, ok, err := r.Store.AssetBySymbol(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found, sync it first"})
		return
	}
	prices, err := r.Store.PricesByAsset(ctx, asset.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(prices) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price history, sync it first"})
		return
	}
	txs, err := r.Store.TransactionsByAsset(ctx, asset.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload := buildChartPayload(asset, adjust, prices, txs)
	c.JSON(http.StatusOK, payload)
}

func buildChartPayload(asset store.Asset, adjust string, prices []store.PricePoint, txs []store.Transaction) ChartPayload {
	payload := ChartPayload{
		Symbol: asset.Symbol,
		Name:   asset.Name,
		Adjust: adjust,
		Dates:  make([]string, len(prices)),
		Kline:  make([][4]float64, len(prices)),
		Volume: make([]float64, len(prices)),
	}
	closes := make([]float64, len(prices))
	for i, p := range prices {
		open, high, low, closePx := basisOHLC(p, adjust)
		payload.Dates[i] = p.Date
		payload.Kline[i] = [4]float64{open, closePx, low, high}
		payload.Volume[i] = p.Volume
		closes[i] = closePx
	}
	payload.Overlays = indicator.MovingAverages(closes, nil)
	payload.Markers = buildTradeMarkers(txs)
	return payload
}

func basisOHLC(p store.PricePoint, adjust string) (open, high, low, closePx float64) {
	switch adjust {
	case "raw":
		return p.Open, p.High, p.Low, p.Close
	case "hfq":
		return p.AdjOpen, p.AdjHigh, p.AdjLow, p.AdjClose
	default:
		return p.QfqOpen, p.QfqHigh, p.QfqLow, p.QfqClose
	}
}

func buildTradeMarkers(txs []store.Transaction) []TradeMarker {
	markers := make([]TradeMarker, 0, len(txs))
	for _, tx := range txs {
		m := TradeMarker{Time: tx.Date, Side: tx.Side}
		if tx.Side == "buy" {
			m.Label = "B"
			m.Position = "belowBar"
			m.Color = "#34d399"
			m.Shape = "arrowUp"
		} else {
			m.Label = "S"
			m.Position = "aboveBar"
			m.Color = "#f87171"
			m.Shape = "arrowDown"
		}
		markers = append(markers, m)
	}
	return markers
}

func (r *Router) handleEquityReport(c *gin.Context) {
	if r.Renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "报表渲染未启用"})
		return
	}
	ctx := c.Request.Context()
	snap, err := r.Store.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	curve := portfolio.New(snap).EquityCurve()
	img, err := r.Renderer.RenderEquityCurve(ctx, curve)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	writeImage(c, img)
}

func (r *Router) handleKlineReport(c *gin.Context) {
	if r.Renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "报表渲染未启用"})
		return
	}
	ctx := c.Request.Context()
	symbol := strings.TrimSpace(c.Param("symbol"))
	asset, ok, err := r.Store.AssetBySymbol(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found, sync it first"})
		return
	}
	prices, err := r.Store.PricesByAsset(ctx, asset.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	img, err := r.Renderer.RenderKline(ctx, asset.Symbol, asset.Name, prices)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	writeImage(c, img)
}

// writeImage 有 PNG 给 PNG，无头浏览器不可用时退回 HTML。
func writeImage(c *gin.Context, img report.ImageResult) {
	if len(img.PNG) > 0 {
		c.Header("Content-Disposition", `inline; filename="`+img.Filename+`"`)
		c.Data(http.StatusOK, "image/png", img.PNG)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", img.HTML)
}
