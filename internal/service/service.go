// Package service реализует бизнес-логику бэк-офиса.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
	"github.com/DzNk/PracticeAstuWinterBack/internal/report"
	"github.com/DzNk/PracticeAstuWinterBack/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре логин-пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username string, passwordHash []byte, permission model.Permission) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, username string, passwordHash []byte, permission model.Permission) error
	ListUsers(ctx context.Context, keyword string, permission *model.Permission, p repository.Pagination) ([]model.User, repository.PageInfo, error)
	CreateProduct(ctx context.Context, product model.Product) error
	UpdateProductByArticle(ctx context.Context, product model.Product) error
	GetProductByArticle(ctx context.Context, article string) (*model.Product, error)
	ListProducts(ctx context.Context, keyword string, p repository.Pagination) ([]model.Product, repository.PageInfo, error)
	CreateSalesRequest(ctx context.Context, userID int64, article string, quantity int64, price, income float64) (int64, error)
	ListOrders(ctx context.Context, keyword string, requesterID int64, adminScope bool, p repository.Pagination) ([]model.OrderSummary, repository.PageInfo, error)
	FinishOrder(ctx context.Context, orderID int64) error
	CreateOrder(ctx context.Context, requesterID int64, lineIDs []int64, adminScope bool) (int64, error)
	ListUserSales(ctx context.Context, userID int64) ([]model.SalesItem, error)
	GetOrderReport(ctx context.Context, orderID int64) (*model.OrderReport, error)
}

// Service содержит бизнес-логику бэк-офиса.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Login проверяет логин и пароль и возвращает пользователя.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// CreateUser создаёт пользователя с указанной маской прав.
func (s *Service) CreateUser(ctx context.Context, username, password string, permission model.Permission) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.repo.CreateUser(ctx, username, hash, permission)
	return err
}

// EditUser перезаписывает права пользователя и, если передан новый пароль, его хеш.
func (s *Service) EditUser(ctx context.Context, username, password string, permission model.Permission) error {
	var hash []byte
	if password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}

	return s.repo.UpdateUser(ctx, username, hash, permission)
}

// ListUsers возвращает страницу пользователей.
func (s *Service) ListUsers(ctx context.Context, keyword string, permission *model.Permission, p repository.Pagination) ([]model.User, repository.PageInfo, error) {
	return s.repo.ListUsers(ctx, keyword, permission, p)
}

// EnsureAdmin создаёт администратора со всеми правами, если его ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	err := s.CreateUser(ctx, username, password,
		model.PermissionManageUsers|model.PermissionManageProducts|model.PermissionSellProducts)
	if errors.Is(err, repository.ErrUserExists) {
		return nil
	}
	return err
}

// CreateProduct создаёт товар каталога.
func (s *Service) CreateProduct(ctx context.Context, product model.Product) error {
	return s.repo.CreateProduct(ctx, product)
}

// EditProduct перезаписывает поля товара с указанным артикулом.
func (s *Service) EditProduct(ctx context.Context, product model.Product) error {
	return s.repo.UpdateProductByArticle(ctx, product)
}

// ListProducts возвращает страницу товаров каталога.
func (s *Service) ListProducts(ctx context.Context, keyword string, p repository.Pagination) ([]model.Product, repository.PageInfo, error) {
	return s.repo.ListProducts(ctx, keyword, p)
}

// RecordSale списывает остаток товара и создаёт строку продажи.
func (s *Service) RecordSale(ctx context.Context, userID int64, article string, quantity int64, price, income float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", repository.ErrInsufficientStock)
	}

	_, err := s.repo.CreateSalesRequest(ctx, userID, article, quantity, price, income)
	return err
}

// ListOrders возвращает страницу реализаций с агрегированными суммами.
func (s *Service) ListOrders(ctx context.Context, keyword string, requesterID int64, adminScope bool, p repository.Pagination) ([]model.OrderSummary, repository.PageInfo, error) {
	return s.repo.ListOrders(ctx, keyword, requesterID, adminScope, p)
}

// FinishOrder помечает реализацию завершённой.
func (s *Service) FinishOrder(ctx context.Context, orderID int64) error {
	return s.repo.FinishOrder(ctx, orderID)
}

// CreateOrder группирует свободные строки продаж в новую реализацию.
func (s *Service) CreateOrder(ctx context.Context, requesterID int64, lineIDs []int64, adminScope bool) (int64, error) {
	return s.repo.CreateOrder(ctx, requesterID, lineIDs, adminScope)
}

// ListUserSales возвращает строки продаж пользователя с названиями товаров.
func (s *Service) ListUserSales(ctx context.Context, userID int64) ([]model.SalesItem, error) {
	return s.repo.ListUserSales(ctx, userID)
}

// OrderDocument формирует печатную форму реализации.
func (s *Service) OrderDocument(ctx context.Context, orderID int64) (*report.Document, error) {
	rep, err := s.repo.GetOrderReport(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return report.Render(rep)
}
