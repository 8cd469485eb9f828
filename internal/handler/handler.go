// Package handler содержит HTTP-обработчики API сервиса бэк-офиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DzNk/PracticeAstuWinterBack/internal/middleware"
	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
	"github.com/DzNk/PracticeAstuWinterBack/internal/report"
	"github.com/DzNk/PracticeAstuWinterBack/internal/repository"
	"github.com/DzNk/PracticeAstuWinterBack/internal/service"
	"github.com/DzNk/PracticeAstuWinterBack/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, username, password string) (*model.User, error)
	CreateUser(ctx context.Context, username, password string, permission model.Permission) error
	EditUser(ctx context.Context, username, password string, permission model.Permission) error
	ListUsers(ctx context.Context, keyword string, permission *model.Permission, p repository.Pagination) ([]model.User, repository.PageInfo, error)
	CreateProduct(ctx context.Context, product model.Product) error
	EditProduct(ctx context.Context, product model.Product) error
	ListProducts(ctx context.Context, keyword string, p repository.Pagination) ([]model.Product, repository.PageInfo, error)
	RecordSale(ctx context.Context, userID int64, article string, quantity int64, price, income float64) error
	ListOrders(ctx context.Context, keyword string, requesterID int64, adminScope bool, p repository.Pagination) ([]model.OrderSummary, repository.PageInfo, error)
	FinishOrder(ctx context.Context, orderID int64) error
	CreateOrder(ctx context.Context, requesterID int64, lineIDs []int64, adminScope bool) (int64, error)
	ListUserSales(ctx context.Context, userID int64) ([]model.SalesItem, error)
	OrderDocument(ctx context.Context, orderID int64) (*report.Document, error)
}

// TokenIssuer выпускает токены доступа для аутентифицированных пользователей.
type TokenIssuer interface {
	Issue(userID int64, username string, permission model.Permission) (string, error)
}

// Handler реализует HTTP-обработчики API сервиса бэк-офиса.
type Handler struct {
	service        Service
	issuer         TokenIssuer
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, issuer TokenIssuer, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		issuer:         issuer,
		logger:         logger,
		authMiddleware: auth,
	}
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type paginationRequest struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

type paginationResponse struct {
	Pages int64 `json:"pages"`
	Total int64 `json:"total"`
}

func pageInfoResponse(info repository.PageInfo) paginationResponse {
	return paginationResponse{Pages: info.Pages, Total: info.Total}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// isBusinessError сообщает, относится ли ошибка к мягким отказам,
// которые возвращаются клиенту как {ok:false, message} со статусом 200.
func isBusinessError(err error) bool {
	return errors.Is(err, repository.ErrUserExists) ||
		errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrProductExists) ||
		errors.Is(err, repository.ErrProductNotFound) ||
		errors.Is(err, repository.ErrInsufficientStock) ||
		errors.Is(err, repository.ErrOrderNotFound) ||
		errors.Is(err, repository.ErrLinesNotEligible)
}

func (h *Handler) writeResult(w http.ResponseWriter, err error, logMsg string, fields ...zap.Field) {
	if err == nil {
		h.writeJSON(w, okResponse{OK: true})
		return
	}

	if isBusinessError(err) {
		h.writeJSON(w, okResponse{OK: false, Message: err.Error()})
		return
	}

	h.logger.Error(logMsg, append(fields, zap.Error(err))...)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Permission int64  `json:"permission"`
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
}

// Login выполняет аутентификацию пользователя и установку cookie с токеном доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.issuer.Issue(u.ID, u.Username, u.Permission)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, token)
	h.writeJSON(w, loginResponse{
		Permission: int64(u.Permission),
		Name:       u.Username,
		OK:         true,
	})
}

type userDataRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Permission int64  `json:"permission"`
}

// CreateUser создаёт нового пользователя с указанной маской прав.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidUsername(req.Username) || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.CreateUser(r.Context(), req.Username, req.Password, model.Permission(req.Permission))
	h.writeResult(w, err, "create user error", zap.String("username", req.Username))
}

// EditUser перезаписывает права и пароль существующего пользователя.
func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) {
	var req userDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidUsername(req.Username) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.EditUser(r.Context(), req.Username, req.Password, model.Permission(req.Permission))
	h.writeResult(w, err, "edit user error", zap.String("username", req.Username))
}

type userListRequest struct {
	Keyword    string            `json:"keyword"`
	Permission *int64            `json:"permission,omitempty"`
	Pagination paginationRequest `json:"pagination"`
}

type userItem struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Permission int64  `json:"permission"`
}

type userListResponse struct {
	Users          []userItem         `json:"users"`
	PaginationInfo paginationResponse `json:"paginationInfo"`
}

// ListUsers возвращает страницу пользователей. Хеши паролей не сериализуются.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var req userListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	page, perPage := validation.NormalizePagination(req.Pagination.Page, req.Pagination.PerPage)

	var permission *model.Permission
	if req.Permission != nil {
		p := model.Permission(*req.Permission)
		permission = &p
	}

	users, info, err := h.service.ListUsers(r.Context(), req.Keyword, permission,
		repository.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list users error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := userListResponse{
		Users:          make([]userItem, 0, len(users)),
		PaginationInfo: pageInfoResponse(info),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, userItem{
			ID:         u.ID,
			Username:   u.Username,
			Permission: int64(u.Permission),
		})
	}

	h.writeJSON(w, resp)
}

type productEditRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Article     string  `json:"article"`
	Quantity    int64   `json:"quantity"`
}

func (r productEditRequest) toModel() model.Product {
	return model.Product{
		Name:        r.Name,
		Article:     r.Article,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

// CreateProduct создаёт товар каталога.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidArticle(req.Article) || req.Name == "" || req.Quantity < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.CreateProduct(r.Context(), req.toModel())
	h.writeResult(w, err, "create product error", zap.String("article", req.Article))
}

// EditProduct перезаписывает поля товара с указанным артикулом.
func (h *Handler) EditProduct(w http.ResponseWriter, r *http.Request) {
	var req productEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidArticle(req.Article) || req.Quantity < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.EditProduct(r.Context(), req.toModel())
	h.writeResult(w, err, "edit product error", zap.String("article", req.Article))
}

type productListRequest struct {
	Keyword    string            `json:"keyword"`
	Pagination paginationRequest `json:"pagination"`
}

type productItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Article     string  `json:"article"`
	Quantity    int64   `json:"quantity"`
}

type productListResponse struct {
	Products       []productItem      `json:"products"`
	PaginationInfo paginationResponse `json:"paginationInfo"`
}

// ListProducts возвращает страницу товаров каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var req productListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	page, perPage := validation.NormalizePagination(req.Pagination.Page, req.Pagination.PerPage)

	products, info, err := h.service.ListProducts(r.Context(), req.Keyword,
		repository.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := productListResponse{
		Products:       make([]productItem, 0, len(products)),
		PaginationInfo: pageInfoResponse(info),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, productItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Article:     p.Article,
			Quantity:    p.Quantity,
		})
	}

	h.writeJSON(w, resp)
}

type salesRequest struct {
	Article  string  `json:"article"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	UserID   int64   `json:"userId"`
	Income   float64 `json:"income"`
}

// CreateSalesRequest списывает остаток товара и создаёт строку продажи.
func (h *Handler) CreateSalesRequest(w http.ResponseWriter, r *http.Request) {
	var req salesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidArticle(req.Article) || req.Quantity <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.RecordSale(r.Context(), req.UserID, req.Article, req.Quantity, req.Price, req.Income)
	h.writeResult(w, err, "create sales request error",
		zap.String("article", req.Article), zap.Int64("userID", req.UserID))
}

type orderListRequest struct {
	Keyword    string            `json:"keyword"`
	Pagination paginationRequest `json:"pagination"`
}

type orderItem struct {
	ID       int64   `json:"id"`
	Date     string  `json:"date"`
	Username string  `json:"username"`
	Income   float64 `json:"income"`
	Price    float64 `json:"price"`
	Finished bool    `json:"finished"`
}

type orderListResponse struct {
	Items          []orderItem        `json:"items"`
	PaginationInfo paginationResponse `json:"paginationInfo"`
}

// ListOrders возвращает страницу реализаций с агрегированными суммами.
// Пользователь без права управления каталогом видит только свои реализации.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req orderListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	page, perPage := validation.NormalizePagination(req.Pagination.Page, req.Pagination.PerPage)
	adminScope := claims.Permission().Satisfies(model.PermissionManageProducts)

	orders, info, err := h.service.ListOrders(r.Context(), req.Keyword, claims.UserID, adminScope,
		repository.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err), zap.Int64("userID", claims.UserID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := orderListResponse{
		Items:          make([]orderItem, 0, len(orders)),
		PaginationInfo: pageInfoResponse(info),
	}
	for _, o := range orders {
		resp.Items = append(resp.Items, orderItem{
			ID:       o.ID,
			Date:     o.Date.Format(time.RFC3339),
			Username: o.Username,
			Income:   o.Income,
			Price:    o.Price,
			Finished: o.Finished,
		})
	}

	h.writeJSON(w, resp)
}

type finishOrderRequest struct {
	ID int64 `json:"id"`
}

// FinishOrder помечает реализацию завершённой.
func (h *Handler) FinishOrder(w http.ResponseWriter, r *http.Request) {
	var req finishOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.FinishOrder(r.Context(), req.ID)
	h.writeResult(w, err, "finish order error", zap.Int64("orderID", req.ID))
}

type createOrderRequest struct {
	IDs []int64 `json:"ids"`
}

// CreateOrder группирует свободные строки продаж запрашивающего в новую реализацию.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	adminScope := claims.Permission().Satisfies(model.PermissionManageProducts)

	_, err := h.service.CreateOrder(r.Context(), claims.UserID, req.IDs, adminScope)
	h.writeResult(w, err, "create order error", zap.Int64("userID", claims.UserID))
}

type downloadOrderRequest struct {
	ID int64 `json:"id"`
}

type downloadOrderResponse struct {
	File     string `json:"file"`
	FileType string `json:"fileType"`
	FileName string `json:"fileName"`
}

// DownloadOrder формирует печатную форму реализации и возвращает её в base64.
func (h *Handler) DownloadOrder(w http.ResponseWriter, r *http.Request) {
	var req downloadOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, err := h.service.OrderDocument(r.Context(), req.ID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("download order error", zap.Error(err), zap.Int64("orderID", req.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, downloadOrderResponse{
		File:     doc.File,
		FileType: doc.FileType,
		FileName: doc.FileName,
	})
}

type salesItem struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Income      float64 `json:"income"`
}

type salesListResponse struct {
	Items []salesItem `json:"items"`
}

// ListUserSales возвращает строки продаж текущего пользователя.
func (h *Handler) ListUserSales(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	items, err := h.service.ListUserSales(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list sales error", zap.Error(err), zap.Int64("userID", claims.UserID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := salesListResponse{Items: make([]salesItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, salesItem{
			ID:          it.ID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Income:      it.Income,
		})
	}

	h.writeJSON(w, resp)
}
