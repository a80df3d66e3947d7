package handler

import (
	"errors"
	"io"
	"strconv"

	"coinmarket/internal/service"
	"coinmarket/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	svc *service.Services
}

func NewHandler(svc *service.Services) *Handler {
	return &Handler{svc: svc}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 账户
// ============================================================

// GetBalance GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.svc.Accounts.GetBalance(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": actorID(c),
		"balance": balance,
	})
}

// Leaderboard GET /api/v1/account/leaderboard?limit=10
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := h.svc.Accounts.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": entries})
}

// ============================================================
// 每日收入
// ============================================================

// IncomeStatus GET /api/v1/income/status
func (h *Handler) IncomeStatus(c *gin.Context) {
	status, err := h.svc.Income.Status(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"ready":             status.Ready,
		"amount":            status.Amount,
		"remaining_seconds": int64(status.Remaining.Seconds()),
		"next_claim_at":     status.NextClaimAt,
	})
}

// ClaimIncome POST /api/v1/income/claim
// 冷却中返回 granted=false 和剩余秒数，不视为错误
func (h *Handler) ClaimIncome(c *gin.Context) {
	res, err := h.svc.Income.Claim(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"granted":           res.Granted,
		"amount":            res.Amount,
		"balance":           res.Balance,
		"remaining_seconds": int64(res.Remaining.Seconds()),
		"next_claim_at":     res.NextClaimAt,
	})
}

// ============================================================
// 购物车
// ============================================================

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=999"`
}

// GetCart GET /api/v1/cart
func (h *Handler) GetCart(c *gin.Context) {
	view, err := h.svc.Cart.Lines(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// AddCartItem POST /api/v1/cart/items
func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.svc.Cart.AddLine(c.Request.Context(), actorID(c), req.ProductID); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"product_id": req.ProductID})
}

// SetCartQuantity PUT /api/v1/cart/items/:product_id
func (h *Handler) SetCartQuantity(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.svc.Cart.SetQuantity(c.Request.Context(), actorID(c), productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"product_id": productID, "quantity": req.Quantity})
}

// ClearCart DELETE /api/v1/cart
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.svc.Cart.Clear(c.Request.Context(), actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 结算与购买
// ============================================================

type AddressRequest struct {
	Address string `json:"address" binding:"max=512"`
}

// bindOptional 允许空请求体
func bindOptional(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return false
	}
	return true
}

// Checkout POST /api/v1/checkout
//
// 扣款、订单、库存、清空购物车在同一事务中完成，失败时全部回滚
func (h *Handler) Checkout(c *gin.Context) {
	var req AddressRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.svc.Checkout.Settle(c.Request.Context(), actorID(c), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

// BuyNow POST /api/v1/market/:product_id/buy
func (h *Handler) BuyNow(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	var req AddressRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.svc.Purchase.BuyNow(c.Request.Context(), actorID(c), productID, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

// ============================================================
// 商城与库存
// ============================================================

// ListProducts GET /api/v1/market?category=xxx
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.svc.Catalog.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": products})
}

// GetProduct GET /api/v1/market/:product_id
func (h *Handler) GetProduct(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	product, err := h.svc.Catalog.Get(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, product)
}

type CreateProductRequest struct {
	Name            string `json:"name" binding:"required,max=128"`
	Description     string `json:"description"`
	Price           int64  `json:"price" binding:"gte=0,lte=1000000000"`
	Category        string `json:"category" binding:"max=64"`
	ImageURL        string `json:"image_url" binding:"omitempty,url"`
	FulfillmentKind string `json:"fulfillment_kind" binding:"omitempty,oneof=DIGITAL PHYSICAL HYBRID"`
}

// CreateProduct POST /api/v1/admin/products
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	product, err := h.svc.Catalog.Create(c.Request.Context(), service.CreateProductInput{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Category:        req.Category,
		ImageURL:        req.ImageURL,
		FulfillmentKind: req.FulfillmentKind,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, product)
}

// ListInventory GET /api/v1/inventory
func (h *Handler) ListInventory(c *gin.Context) {
	entries, err := h.svc.Inventory.List(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": entries})
}

// ============================================================
// 订单
// ============================================================

// ListOrders GET /api/v1/orders?page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	result, err := h.svc.Orders.List(c.Request.Context(), actorID(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// GetOrder GET /api/v1/orders/:order_no
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.svc.Orders.Get(c.Request.Context(), actorID(c), c.Param("order_no"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}
