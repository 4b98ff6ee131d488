// @title           Exchange API
// @version         1.0
// @description     Limit order matching, balance settlement and market statistics
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization

package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	appinterfaces "main/internal/application/interfaces"
	appexchange "main/internal/application/service/exchange"
	appusers "main/internal/application/service/users"
	domainexchange "main/internal/domain/entity/exchange"
	domainusers "main/internal/domain/entity/users"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const apiBasePath = "/api/v1"

const userContextKey = "auth_user"

var (
	errMissingUID        = errors.New("missing uid")
	errMissingInstrument = errors.New("instrument_uid query param required")
	errMissingAuth       = errors.New("authorization token required")
)

type Handler struct {
	router   *gin.Engine
	exchange *appexchange.Service
	users    *appusers.Service
	cache    *redis.Client
	cacheTTL time.Duration
}

var _ appinterfaces.HTTPHandler = (*Handler)(nil)

func NewHandler(exchange *appexchange.Service, users *appusers.Service, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:   router,
		exchange: exchange,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := h.router.Group(apiBasePath)

	api.POST("/users", h.registerUser)
	api.POST("/users/token", h.issueToken)

	// Catalog and statistics hold no per-user data, so their GET
	// responses are safe to share through the cache.
	inst := api.Group("/instruments")
	if h.cache != nil {
		inst.Use(h.cacheMiddleware())
	}
	{
		inst.GET("", h.listInstruments)
		inst.GET("/:uid", h.getInstrument)
	}

	stats := api.Group("/stats")
	if h.cache != nil {
		stats.Use(h.cacheMiddleware())
	}
	{
		stats.GET("/price", h.statPrice)
		stats.GET("/liquidity", h.statLiquidity)
		stats.GET("/inventory", h.statInventory)
	}

	authorized := api.Group("")
	authorized.Use(h.authMiddleware())
	{
		authorized.GET("/users/me", h.getMe)

		authorized.POST("/instruments", h.createInstrument)
		authorized.PUT("/instruments/:uid", h.updateInstrument)
		authorized.DELETE("/instruments/:uid", h.deleteInstrument)

		authorized.GET("/balances/cash", h.getCashBalance)
		authorized.PUT("/balances/cash", h.putCashBalance)
		authorized.GET("/balances/instrument", h.getQuantityBalance)
		authorized.PUT("/balances/instrument", h.putQuantityBalance)

		authorized.POST("/orders", h.placeOrder)
		authorized.GET("/orders", h.listOrders)
		authorized.GET("/orders/:uid", h.getOrder)
		authorized.DELETE("/orders", h.cancelOrders)

		authorized.POST("/stats", h.writeStatsSnapshot)
	}
}

// Users handlers

// registerUser creates a new account
// @Summary      Register user
// @Description  Create an account with a zero cash balance and zero holdings
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        credentials  body      credentialsPayload  true  "Email and password"
// @Success      201          {object}  domainusers.User
// @Failure      400          {object}  map[string]string
// @Failure      409          {object}  map[string]string
// @Router       /users [post]
func (h *Handler) registerUser(c *gin.Context) {
	var payload credentialsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	user, err := h.users.Register(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// issueToken authenticates and returns a bearer token
// @Summary      Issue token
// @Description  Verify credentials and issue an opaque bearer token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        credentials  body      credentialsPayload  true  "Email and password"
// @Success      200          {object}  domainusers.Token
// @Failure      400          {object}  map[string]string
// @Failure      401          {object}  map[string]string
// @Router       /users/token [post]
func (h *Handler) issueToken(c *gin.Context) {
	var payload credentialsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	token, err := h.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// getMe returns the authenticated user
// @Summary      Current user
// @Description  Return the account that owns the bearer token
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domainusers.User
// @Failure      401  {object}  map[string]string
// @Router       /users/me [get]
func (h *Handler) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// Instruments handlers

// createInstrument registers a tradable instrument
// @Summary      Create instrument
// @Description  Register an instrument and provision zero holdings for every user
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        instrument  body      instrumentPayload  true  "Instrument data"
// @Success      201         {object}  domainexchange.Instrument
// @Failure      400         {object}  map[string]string
// @Router       /instruments [post]
func (h *Handler) createInstrument(c *gin.Context) {
	var payload instrumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrument, err := h.exchange.CreateInstrument(c.Request.Context(), payload.Name)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusCreated, instrument)
}

// listInstruments lists the instrument catalog
// @Summary      List instruments
// @Tags         instruments
// @Produce      json
// @Success      200  {array}   domainexchange.Instrument
// @Failure      500  {object}  map[string]string
// @Router       /instruments [get]
func (h *Handler) listInstruments(c *gin.Context) {
	instruments, err := h.exchange.ListInstruments(c.Request.Context())
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, instruments)
}

// getInstrument retrieves one instrument
// @Summary      Get instrument
// @Tags         instruments
// @Produce      json
// @Param        uid  path      string  true  "Instrument UID"
// @Success      200  {object}  domainexchange.Instrument
// @Failure      404  {object}  map[string]string
// @Router       /instruments/{uid} [get]
func (h *Handler) getInstrument(c *gin.Context) {
	uid, err := parseUIDParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrument, err := h.exchange.GetInstrument(c.Request.Context(), uid)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

// updateInstrument changes name and status
// @Summary      Update instrument
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        uid         path      string             true  "Instrument UID"
// @Param        instrument  body      instrumentPayload  true  "Instrument data"
// @Success      200         {object}  domainexchange.Instrument
// @Failure      400         {object}  map[string]string
// @Failure      404         {object}  map[string]string
// @Router       /instruments/{uid} [put]
func (h *Handler) updateInstrument(c *gin.Context) {
	uid, err := parseUIDParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var payload instrumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	status := domainexchange.InstrumentStatus(payload.Status)
	instrument, err := h.exchange.UpdateInstrument(c.Request.Context(), uid, payload.Name, status)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

// deleteInstrument soft-deletes the instrument
// @Summary      Delete instrument
// @Description  Mark the instrument deleted; orders and balances are preserved
// @Tags         instruments
// @Produce      json
// @Security     BearerAuth
// @Param        uid  path      string  true  "Instrument UID"
// @Success      200  {object}  domainexchange.Instrument
// @Failure      404  {object}  map[string]string
// @Router       /instruments/{uid} [delete]
func (h *Handler) deleteInstrument(c *gin.Context) {
	uid, err := parseUIDParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrument, err := h.exchange.DeleteInstrument(c.Request.Context(), uid)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

// Balances handlers

// getCashBalance returns the caller's cash balance
// @Summary      Get cash balance
// @Tags         balances
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domainexchange.CashBalance
// @Failure      401  {object}  map[string]string
// @Router       /balances/cash [get]
func (h *Handler) getCashBalance(c *gin.Context) {
	balance, err := h.exchange.GetCashBalance(c.Request.Context(), currentUser(c).UID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// putCashBalance overwrites the caller's cash balance
// @Summary      Set cash balance
// @Description  Overwrite the cash balance; used for funding accounts, not settlement
// @Tags         balances
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        balance  body      amountPayload  true  "New amount"
// @Success      200      {object}  domainexchange.CashBalance
// @Failure      400      {object}  map[string]string
// @Router       /balances/cash [put]
func (h *Handler) putCashBalance(c *gin.Context) {
	var payload amountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	balance, err := h.exchange.SetCashBalance(c.Request.Context(), currentUser(c).UID, payload.Amount)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// getQuantityBalance returns the caller's holding of one instrument
// @Summary      Get instrument balance
// @Tags         balances
// @Produce      json
// @Security     BearerAuth
// @Param        instrument_uid  query     string  true  "Instrument UID"
// @Success      200             {object}  domainexchange.QuantityBalance
// @Failure      400             {object}  map[string]string
// @Router       /balances/instrument [get]
func (h *Handler) getQuantityBalance(c *gin.Context) {
	instrumentUID, err := parseUUIDQuery(c, "instrument_uid")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingInstrument)
		return
	}
	balance, err := h.exchange.GetQuantityBalance(c.Request.Context(), currentUser(c).UID, instrumentUID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// putQuantityBalance overwrites the caller's holding of one instrument
// @Summary      Set instrument balance
// @Tags         balances
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        balance  body      quantityAmountPayload  true  "Instrument and new amount"
// @Success      200      {object}  domainexchange.QuantityBalance
// @Failure      400      {object}  map[string]string
// @Router       /balances/instrument [put]
func (h *Handler) putQuantityBalance(c *gin.Context) {
	var payload quantityAmountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrumentUID, err := uuid.Parse(payload.InstrumentUID)
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingInstrument)
		return
	}
	balance, err := h.exchange.SetQuantityBalance(c.Request.Context(), currentUser(c).UID, instrumentUID, payload.Amount)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// Orders handlers

// placeOrder submits a limit order and runs one matching pass
// @Summary      Place order
// @Description  Match against eligible resting counter orders and rest any remainder
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        order  body      orderPayload  true  "Order data"
// @Success      201    {object}  orderResult
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Failure      422    {object}  map[string]string
// @Router       /orders [post]
func (h *Handler) placeOrder(c *gin.Context) {
	var payload orderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	req, err := payload.toRequest(currentUser(c).UID)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	order, trades, err := h.exchange.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusCreated, orderResult{Order: order, Trades: trades})
}

// listOrders lists the caller's orders, newest first
// @Summary      List orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domainexchange.Order
// @Failure      401  {object}  map[string]string
// @Router       /orders [get]
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.exchange.ListUserOrders(c.Request.Context(), currentUser(c).UID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder retrieves one of the caller's orders
// @Summary      Get order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        uid  path      string  true  "Order UID"
// @Success      200  {object}  domainexchange.Order
// @Failure      404  {object}  map[string]string
// @Router       /orders/{uid} [get]
func (h *Handler) getOrder(c *gin.Context) {
	uid, err := parseUIDParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	order, err := h.exchange.GetOrder(c.Request.Context(), uid)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	if order.UserUID != currentUser(c).UID {
		writeError(c, http.StatusNotFound, domainexchange.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

// cancelOrders cancels all of the caller's active orders
// @Summary      Cancel open orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]int64
// @Failure      401  {object}  map[string]string
// @Router       /orders [delete]
func (h *Handler) cancelOrders(c *gin.Context) {
	cancelled, err := h.exchange.CancelOpenOrders(c.Request.Context(), currentUser(c).UID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// Statistics handlers

// statPrice returns the volume weighted average price
// @Summary      Volume weighted price
// @Tags         stats
// @Produce      json
// @Param        instrument_uid  query     string  true  "Instrument UID"
// @Success      200             {object}  statResult
// @Failure      400             {object}  map[string]string
// @Router       /stats/price [get]
func (h *Handler) statPrice(c *gin.Context) {
	h.handleStat(c, h.exchange.VolumeWeightedPrice)
}

// statLiquidity returns completed volume over total volume
// @Summary      Liquidity ratio
// @Tags         stats
// @Produce      json
// @Param        instrument_uid  query     string  true  "Instrument UID"
// @Success      200             {object}  statResult
// @Failure      400             {object}  map[string]string
// @Router       /stats/liquidity [get]
func (h *Handler) statLiquidity(c *gin.Context) {
	h.handleStat(c, h.exchange.LiquidityRatio)
}

// statInventory returns the market maker inventory
// @Summary      Market maker inventory
// @Tags         stats
// @Produce      json
// @Param        instrument_uid  query     string  true  "Instrument UID"
// @Success      200             {object}  statResult
// @Failure      400             {object}  map[string]string
// @Router       /stats/inventory [get]
func (h *Handler) statInventory(c *gin.Context) {
	h.handleStat(c, h.exchange.MarketMakerInventory)
}

// writeStatsSnapshot persists all three aggregates as history rows
// @Summary      Write statistics snapshot
// @Tags         stats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        snapshot  body      statsSnapshotPayload  true  "Instrument and run id"
// @Success      201       {object}  domainexchange.InstrumentStats
// @Failure      400       {object}  map[string]string
// @Router       /stats [post]
func (h *Handler) writeStatsSnapshot(c *gin.Context) {
	var payload statsSnapshotPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrumentUID, runUID, err := payload.parse()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	stats, err := h.exchange.WriteStatsSnapshot(c.Request.Context(), instrumentUID, runUID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusCreated, stats)
}

// Middleware

// authMiddleware resolves the bearer token from the Authorization header
// and stores the owning user in the request context. Both "Bearer" and
// "Token" schemes are accepted.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.GetHeader("Authorization")
		token := ""
		for _, scheme := range []string{"Bearer ", "Token "} {
			if strings.HasPrefix(value, scheme) {
				token = strings.TrimSpace(strings.TrimPrefix(value, scheme))
				break
			}
		}
		if token == "" {
			writeError(c, http.StatusUnauthorized, errMissingAuth)
			c.Abort()
			return
		}
		user, err := h.users.UserByToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domainusers.User {
	return c.MustGet(userContextKey).(*domainusers.User)
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}
