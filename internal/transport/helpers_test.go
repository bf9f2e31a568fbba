package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"minimarket/internal/cart"
	"minimarket/internal/catalog"
	"minimarket/internal/checkout"
	"minimarket/internal/domain"
	"minimarket/internal/favorites"
	"minimarket/internal/middleware"
	"minimarket/internal/repository"
	"minimarket/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret  = "test-secret"
	testPIN     = "4821"
	testSession = "8a1f7c3e-5b2d-4c6e-9f10-2a3b4c5d6e7f"
)

// Mock repositories for testing
type mockProductRepository struct {
	mu       sync.Mutex
	products []*domain.Product
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *product
	m.products = append(m.products, &p)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == product.ID {
			updated := *product
			m.products[i] = &updated
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			found := *p
			return &found, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.CategoryID == "" || p.CategoryID == filter.CategoryID {
			found := *p
			out = append(out, &found)
		}
	}
	return out, nil
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories []*domain.Category
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.ID == category.ID {
			return repository.ErrCategoryAlreadyExists
		}
	}
	c := *category
	m.categories = append(m.categories, &c)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		found := *c
		out = append(out, &found)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.ID == id {
			found := *c
			return &found, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, 0)
	for i := len(m.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if m.orders[i].SessionID == sessionID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

type mockAdminSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.AdminSession
}

func (m *mockAdminSessionRepository) Create(ctx context.Context, session *domain.AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = session
	return nil
}

func (m *mockAdminSessionRepository) FindByToken(ctx context.Context, token string) (*domain.AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return nil, repository.ErrAdminSessionNotFound
	}
	if session.Revoked {
		return nil, repository.ErrAdminSessionRevoked
	}
	return session, nil
}

func (m *mockAdminSessionRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return repository.ErrAdminSessionNotFound
	}
	session.Revoked = true
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (m *mockNotifier) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, text)
	return nil
}

type mockObjectStore struct {
	mu          sync.Mutex
	name        string
	contentType string
	body        []byte
	err         error
}

func (m *mockObjectStore) Put(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.name, m.contentType, m.body = name, contentType, data
	return "https://cdn.example.com/" + name, nil
}

func int64Ptr(v int64) *int64 { return &v }

func seedProducts() []*domain.Product {
	return []*domain.Product{
		{ID: "apple", Name: "Яблоко", NameUz: "Olma", Price: 12000, Unit: domain.UnitKilogram, CategoryID: "fruits", InStock: true, IsFeatured: true, Rating: 4.8},
		{ID: "banana", Name: "Банан", NameUz: "Banan", Price: 18000, OldPrice: int64Ptr(22000), Unit: domain.UnitKilogram, CategoryID: "fruits", InStock: true, IsOnSale: true, Rating: 4.6},
		{ID: "bread", Name: "Хлеб", NameUz: "Non", Price: 5000, Unit: domain.UnitPiece, CategoryID: "bakery", InStock: true, Rating: 4.9},
		{ID: "milk", Name: "Молоко", NameUz: "Sut", Price: 11000, Unit: domain.UnitLitre, CategoryID: "dairy", InStock: false, Rating: 4.5},
	}
}

func seedCategories() []*domain.Category {
	return []*domain.Category{
		{ID: "fruits", Name: "Фрукты", NameUz: "Mevalar"},
		{ID: "bakery", Name: "Выпечка", NameUz: "Non mahsulotlari"},
		{ID: "dairy", Name: "Молочные", NameUz: "Sut mahsulotlari"},
	}
}

type testServer struct {
	router   http.Handler
	catalog  *catalog.Catalog
	carts    *cart.Manager
	notifier *mockNotifier
	orders   *mockOrderRepository
	objects  *mockObjectStore
	redis    *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := &mockProductRepository{products: seedProducts()}
	categories := &mockCategoryRepository{categories: seedCategories()}
	c := catalog.New(products, categories, logger)
	require.NoError(t, c.Refresh(ctx))

	store := cart.NewRedisStore(client, time.Hour)
	persister := cart.NewPersister(store, logger)
	persister.Start()
	t.Cleanup(func() { _ = persister.Close(context.Background()) })
	carts := cart.NewManager(store, persister, logger, time.Minute)

	ts := &testServer{
		catalog:  c,
		carts:    carts,
		notifier: &mockNotifier{},
		orders:   &mockOrderRepository{},
		objects:  &mockObjectStore{},
		redis:    mr,
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	require.NoError(t, err)
	adminService := service.NewAdminService(
		&mockAdminSessionRepository{sessions: make(map[string]*domain.AdminSession)},
		string(pinHash),
		service.TokenSettings{Secret: testSecret},
	)

	checkoutService := checkout.NewService(carts, ts.orders, ts.notifier, nil, checkout.FormatOptions{
		CardNumber: "8600 1234 5678 9012",
		Location:   time.UTC,
	}, logger)

	auth := middleware.AuthMiddleware(testSecret, logger)
	admin := middleware.RequireAdmin(logger)
	loginLimit := middleware.RateLimitMiddleware(client, middleware.RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "rate_limit:admin_login",
	}, logger)

	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware)
	NewCatalogHandler(c, logger).RegisterRoutes(r)
	NewCatalogHandler(c, logger).RegisterAdminRoutes(r, auth, admin)
	NewCartHandler(carts, c, logger).RegisterRoutes(r)
	NewCheckoutHandler(checkoutService, checkout.NewOptions("8600 1234 5678 9012"), logger).RegisterRoutes(r)
	NewFavoritesHandler(favorites.NewStore(client, time.Hour), c, logger).RegisterRoutes(r)
	NewAdminHandler(adminService, logger).RegisterRoutes(r, auth, loginLimit)
	NewUploadHandler(ts.objects, 1<<20, logger).RegisterRoutes(r, auth, admin)

	ts.router = r
	return ts
}

// do sends a JSON request with the test session and an optional bearer token
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, testSession)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T) LoginResponse {
	t.Helper()
	w := ts.do(t, "POST", "/api/admin/login", LoginRequest{PIN: testPIN}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	decode(t, w, &resp)
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	decode(t, w, &resp)
	return resp.Error
}
