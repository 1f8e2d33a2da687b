package api

import (
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gin-gonic/gin"

	"github.com/rawblock/scriptquery/internal/daemon"
	"github.com/rawblock/scriptquery/internal/feeest"
	"github.com/rawblock/scriptquery/internal/headers"
	"github.com/rawblock/scriptquery/internal/query"
	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/internal/txcache"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// maxBlocksPerListing caps /blocks to spec.md's limit<=30.
const maxBlocksPerListing = 30

// blockTxsPageSize is the fixed page size for /block/:hash/txs, matching
// spec.md's "page of up to 50 transactions" with start_index required to
// land on a page boundary.
const blockTxsPageSize = 50

// maxBlockVsize is the vbyte budget one confirmation target represents,
// used to convert a confirmation-target block count into feeest's vsize
// threshold.
const maxBlockVsize = 1_000_000

// APIHandler composes the query engine with the ambient pieces (store,
// daemon, header index, tx cache) the HTTP surface needs directly — for
// block summaries and raw tx bytes the query engine itself has no
// operation for, mirroring rest.rs's split between the Query struct and
// its own block/tx rendering helpers.
type APIHandler struct {
	store   store.ReadStore
	daemon  daemon.Client
	headers *headers.Index
	txs     *txcache.Cache
	query   *query.Query
	hub     *Hub
	params  *chaincfg.Params
}

func SetupRouter(s store.ReadStore, d daemon.Client, h *headers.Index, txs *txcache.Cache, q *query.Query, hub *Hub, params *chaincfg.Params) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.org,https://www.example.org
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{store: s, daemon: d, headers: h, txs: txs, query: q, hub: hub, params: params}

	pub := r.Group("/")
	{
		pub.GET("health", handler.handleHealth)
		pub.GET("ws", hub.Subscribe)

		pub.GET("blocks", handler.handleBlocks)
		pub.GET("block-height/:height", handler.handleBlockHeight)
		pub.GET("block/:hash", handler.handleBlock)
		pub.GET("block/:hash/status", handler.handleBlockStatus)
		pub.GET("block/:hash/txs", handler.handleBlockTxs)

		pub.GET("tx/:hash", handler.handleTx)
		pub.GET("tx/:hash/hex", handler.handleTxHex)
		pub.GET("tx/:hash/status", handler.handleTxStatus)

		pub.GET("scripthash/:hash/balance", handler.handleScripthashBalance)
		pub.GET("scripthash/:hash/history", handler.handleScripthashHistory)
		pub.GET("scripthash/:hash/utxo", handler.handleScripthashUTXO)
		pub.GET("scripthash/:hash/status", handler.handleScripthashStatus)

		pub.GET("fee-estimate", handler.handleFeeEstimate)
	}

	auth := r.Group("/")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("tx", handler.handleBroadcast)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	height := h.headers.BestHeight()
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"bestHeight":  height,
		"cachedTxs":   h.txs.Len(),
		"storeReady":  h.store != nil,
		"daemonReady": h.daemon != nil,
	})
}

// handleBlocks serves GET /blocks?limit=<n<=30>&start_height=<h>.
func (h *APIHandler) handleBlocks(c *gin.Context) {
	limit := maxBlocksPerListing
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxBlocksPerListing {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 30"})
			return
		}
		limit = n
	}

	start := h.headers.BestHeight()
	if v := c.Query("start_height"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_height"})
			return
		}
		start = int32(n)
	}
	if start < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no blocks indexed"})
		return
	}

	ctx := c.Request.Context()
	summaries := make([]chainmodels.BlockMeta, 0, limit)
	for height := start; height > start-int32(limit) && height >= 0; height-- {
		meta, err := h.blockSummaryByHeight(ctx, height)
		if err != nil {
			break
		}
		summaries = append(summaries, *meta)
	}
	c.JSON(http.StatusOK, summaries)
}

// handleBlockHeight serves GET /block-height/<h> with a 307 redirect to
// /block/<hash>, per spec.md.
func (h *APIHandler) handleBlockHeight(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("height"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid height"})
		return
	}
	height := int32(n)

	var hash chainhash.Hash
	if entry, ok := h.headers.GetByHeight(height); ok {
		hash = entry.Hash
	} else {
		hash, err = h.daemon.GetBlockHash(c.Request.Context(), int64(height))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
			return
		}
	}
	c.Redirect(http.StatusTemporaryRedirect, "/block/"+hash.String())
}

// handleBlock serves GET /block/<hash>.
func (h *APIHandler) handleBlock(c *gin.Context) {
	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block hash"})
		return
	}
	meta, err := h.blockSummaryByHash(c.Request.Context(), *hash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleBlockStatus serves the supplemented GET /block/<hash>/status,
// restored from query.rs's get_block_status.
func (h *APIHandler) handleBlockStatus(c *gin.Context) {
	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block hash"})
		return
	}
	status, err := h.query.GetBlockStatus(*hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleBlockTxs serves GET /block/<hash>/txs?start_index=<k>, a 50-wide
// page of rendered transactions.
func (h *APIHandler) handleBlockTxs(c *gin.Context) {
	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block hash"})
		return
	}
	startIndex := 0
	if v := c.Query("start_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n%blockTxsPageSize != 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_index must be a non-negative multiple of 50"})
			return
		}
		startIndex = n
	}

	ctx := c.Request.Context()
	block, err := h.daemon.GetBlockVerbose(ctx, *hash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if startIndex >= len(block.Tx) {
		c.JSON(http.StatusNotFound, gin.H{"error": "start_index out of range"})
		return
	}
	end := startIndex + blockTxsPageSize
	if end > len(block.Tx) {
		end = len(block.Tx)
	}

	page := make([]*renderedTx, 0, end-startIndex)
	for _, txidHex := range block.Tx[startIndex:end] {
		txid, err := chainhash.NewHashFromStr(txidHex)
		if err != nil {
			continue
		}
		tx, err := loadTx(ctx, h.store, h.txs, h.daemon, *txid)
		if err != nil {
			continue
		}
		rendered, err := renderTransaction(ctx, h.store, h.txs, h.daemon, h.params, *txid, tx)
		if err != nil {
			continue
		}
		page = append(page, rendered)
	}
	c.JSON(http.StatusOK, page)
}

// handleTx serves GET /tx/<hash>.
func (h *APIHandler) handleTx(c *gin.Context) {
	txid, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txid"})
		return
	}
	ctx := c.Request.Context()
	tx, err := loadTx(ctx, h.store, h.txs, h.daemon, *txid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	rendered, err := renderTransaction(ctx, h.store, h.txs, h.daemon, h.params, *txid, tx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rendered)
}

// handleTxHex serves GET /tx/<hash>/hex — raw hex preferring the persisted
// RawTxRow, falling back to the daemon.
func (h *APIHandler) handleTxHex(c *gin.Context) {
	txid, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txid"})
		return
	}
	ctx := c.Request.Context()

	if h.store != nil {
		rows, err := h.store.Scan(ctx, rowcodec.FilterRawTxByTxid(*txid))
		if err == nil {
			for _, row := range rows {
				r, err := rowcodec.RawTxRowFromRow(row)
				if err == nil && r.Txid == *txid {
					c.String(http.StatusOK, hex.EncodeToString(r.Raw))
					return
				}
			}
		}
	}

	raw, err := h.daemon.GetRawTransaction(ctx, *txid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	c.String(http.StatusOK, hex.EncodeToString(raw))
}

// handleTxStatus serves GET /tx/<hash>/status, a reorg-aware confirmation
// check the HTTP surface exposes on top of query.Query.GetTxStatus.
func (h *APIHandler) handleTxStatus(c *gin.Context) {
	txid, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid txid"})
		return
	}
	status, err := h.query.GetTxStatus(c.Request.Context(), *txid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *APIHandler) handleScripthashBalance(c *gin.Context) {
	scripthash, ok := parseScripthash(c)
	if !ok {
		return
	}
	status, err := h.query.GetStatus(c.Request.Context(), scripthash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"confirmed": status.ConfirmedBalance(),
		"mempool":   status.MempoolBalance(),
	})
}

func (h *APIHandler) handleScripthashHistory(c *gin.Context) {
	scripthash, ok := parseScripthash(c)
	if !ok {
		return
	}
	status, err := h.query.GetStatus(c.Request.Context(), scripthash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status.History())
}

func (h *APIHandler) handleScripthashUTXO(c *gin.Context) {
	scripthash, ok := parseScripthash(c)
	if !ok {
		return
	}
	status, err := h.query.GetStatus(c.Request.Context(), scripthash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status.Unspent())
}

func (h *APIHandler) handleScripthashStatus(c *gin.Context) {
	scripthash, ok := parseScripthash(c)
	if !ok {
		return
	}
	status, err := h.query.GetStatus(c.Request.Context(), scripthash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	hash := status.Hash()
	if hash == nil {
		c.JSON(http.StatusOK, gin.H{"status_hash": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status_hash": hash.String()})
}

// handleFeeEstimate serves GET /fee-estimate?conf_target=<n>.
func (h *APIHandler) handleFeeEstimate(c *gin.Context) {
	confTarget := 6
	if v := c.Query("conf_target"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conf_target"})
			return
		}
		confTarget = n
	}
	rate := feeest.EstimateForBlocks(h.query.FeeHistogram(), confTarget, maxBlockVsize)
	c.JSON(http.StatusOK, gin.H{"fee_rate": rate})
}

// handleBroadcast serves POST /tx — body is the raw transaction, either hex
// or binary, and forces an immediate mempool refresh afterward so the new
// transaction is visible to a scripthash query without waiting for the
// tracker's next tick.
func (h *APIHandler) handleBroadcast(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	raw := body
	if decoded, err := hex.DecodeString(strings.TrimSpace(string(body))); err == nil {
		raw = decoded
	}

	ctx := c.Request.Context()
	txid, err := h.query.Broadcast(ctx, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.query.UpdateMempool(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{"txid": txid.String(), "warning": "mempool refresh failed: " + err.Error()})
		return
	}
	c.String(http.StatusOK, txid.String())
}

func parseScripthash(c *gin.Context) ([32]byte, bool) {
	var out [32]byte
	raw, err := hex.DecodeString(c.Param("hash"))
	if err != nil || len(raw) != 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scripthash must be 32 bytes hex"})
		return out, false
	}
	copy(out[:], raw)
	return out, true
}
