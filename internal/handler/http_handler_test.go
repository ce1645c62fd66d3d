package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/auth"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/hub"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/notifier"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/presence"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/registry"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/relay"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/repository"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/stream"
)

const testSecret = "test-secret"

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	nextID   int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (f *memSessionRepo) Create(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	session.ID = fmt.Sprintf("sess-%d", f.nextID)
	session.CreatedAt = time.Now().UTC()
	c := *session
	f.sessions[session.ID] = &c
	return nil
}

func (f *memSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (f *memSessionRepo) FindOpenByPair(_ context.Context, userID, counselorID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.UserID == userID && session.CounselorID == counselorID && session.Status.Open() {
			c := *session
			return &c, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (f *memSessionRepo) UpdateStatus(_ context.Context, id string, status domain.SessionStatus, resolvedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.Status = status
	session.ResolvedAt = resolvedAt
	return nil
}

func (f *memSessionRepo) ListByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Session{}
	for _, session := range f.sessions {
		if session.UserID == userID {
			c := *session
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *memSessionRepo) ListByCounselor(_ context.Context, counselorID string, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Session{}
	for _, session := range f.sessions {
		if session.CounselorID != counselorID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if session.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		c := *session
		out = append(out, &c)
	}
	return out, nil
}

type memMessageRepo struct{}

func (memMessageRepo) CreateWithSessionUpdate(context.Context, *domain.Message) error {
	return nil
}

func (memMessageRepo) GetByID(context.Context, string) (*domain.Message, error) {
	return nil, repository.ErrMessageNotFound
}

func (memMessageRepo) ListBySession(context.Context, string) ([]*domain.Message, error) {
	return []*domain.Message{}, nil
}

func (memMessageRepo) MarkRead(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

type memCounselorRepo struct {
	mu         sync.Mutex
	counselors map[string]*domain.Counselor
}

func newMemCounselorRepo(counselors ...*domain.Counselor) *memCounselorRepo {
	f := &memCounselorRepo{counselors: make(map[string]*domain.Counselor)}
	for _, c := range counselors {
		cp := *c
		f.counselors[c.ID] = &cp
	}
	return f
}

func (f *memCounselorRepo) GetByID(_ context.Context, id string) (*domain.Counselor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counselor, ok := f.counselors[id]
	if !ok {
		return nil, repository.ErrCounselorNotFound
	}
	c := *counselor
	return &c, nil
}

func (f *memCounselorRepo) GetByUserID(_ context.Context, userID string) (*domain.Counselor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, counselor := range f.counselors {
		if counselor.UserID == userID {
			c := *counselor
			return &c, nil
		}
	}
	return nil, repository.ErrCounselorNotFound
}

func (f *memCounselorRepo) ListAvailable(_ context.Context) ([]*domain.Counselor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Counselor{}
	for _, counselor := range f.counselors {
		if counselor.IsAvailable {
			c := *counselor
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *memCounselorRepo) UpdateCounters(_ context.Context, id string, activeSessions int, totalResolved int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if counselor, ok := f.counselors[id]; ok {
		counselor.ActiveSessions = activeSessions
		counselor.TotalResolved = totalResolved
	}
	return nil
}

func (f *memCounselorRepo) UpdateRating(_ context.Context, id string, average float64, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if counselor, ok := f.counselors[id]; ok {
		counselor.RatingAverage = average
		counselor.RatingCount = count
	}
	return nil
}

type memRatingRepo struct {
	mu      sync.Mutex
	ratings map[string]*domain.Rating
}

func newMemRatingRepo() *memRatingRepo {
	return &memRatingRepo{ratings: make(map[string]*domain.Rating)}
}

func (f *memRatingRepo) Create(_ context.Context, rating *domain.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ratings[rating.SessionID]; ok {
		return repository.ErrDuplicateRating
	}
	rating.ID = "rating-1"
	c := *rating
	f.ratings[rating.SessionID] = &c
	return nil
}

func (f *memRatingRepo) GetBySession(_ context.Context, sessionID string) (*domain.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rating, ok := f.ratings[sessionID]
	if !ok {
		return nil, repository.ErrRatingNotFound
	}
	c := *rating
	return &c, nil
}

func (f *memRatingRepo) AggregateForCounselor(_ context.Context, counselorID string) (float64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum, count int64
	for _, rating := range f.ratings {
		if rating.CounselorID == counselorID {
			sum += int64(rating.Value)
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

type apiFixture struct {
	router   *gin.Engine
	sessions *memSessionRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := newMemSessionRepo()
	counselors := newMemCounselorRepo(&domain.Counselor{
		ID:          "couns-1",
		UserID:      "cuser-1",
		IsAvailable: true,
	})
	ratings := newMemRatingRepo()

	reg := registry.New(sessions, counselors, ratings)

	h := hub.NewHub(config.WebSocketConfig{})
	messageRelay := relay.New(
		sessions,
		memMessageRepo{},
		counselors,
		h,
		notifier.NewRouter(h),
		stream.NewNoopProducer(),
		presence.NewMemoryStore(),
		reg.SessionLocks(),
		0,
	)

	verifier := auth.NewVerifier(auth.Config{Secret: testSecret}, auth.NewMemoryBlocklist(), counselors)

	router := gin.New()
	api := router.Group("/api")
	api.Use(AuthMiddleware(verifier))
	NewChatHandler(reg, messageRelay).RegisterRoutes(api)

	return &apiFixture{router: router, sessions: sessions}
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (fx *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return envelope.Data
}

func TestCreateSessionEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	token := signToken(t, "user-1", domain.RoleUser)

	w := fx.do(t, http.MethodPost, "/api/chat/sessions", token, `{"counselor_id":"couns-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["status"] != string(domain.StatusPending) {
		t.Fatalf("expected pending session, got %v", data["status"])
	}
}

func TestCreateSessionRequiresToken(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/chat/sessions", "", `{"counselor_id":"couns-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateSessionConflictReturnsExisting(t *testing.T) {
	fx := newAPIFixture(t)
	token := signToken(t, "user-1", domain.RoleUser)

	first := fx.do(t, http.MethodPost, "/api/chat/sessions", token, `{"counselor_id":"couns-1"}`)
	firstID := decodeData(t, first)["id"]

	w := fx.do(t, http.MethodPost, "/api/chat/sessions", token, `{"counselor_id":"couns-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["id"] != firstID {
		t.Fatalf("expected existing session %v back, got %v", firstID, data["id"])
	}
}

func TestCreateSessionUnknownCounselor(t *testing.T) {
	fx := newAPIFixture(t)
	token := signToken(t, "user-1", domain.RoleUser)

	w := fx.do(t, http.MethodPost, "/api/chat/sessions", token, `{"counselor_id":"couns-missing"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAcceptDeclineResolveFlow(t *testing.T) {
	fx := newAPIFixture(t)
	userToken := signToken(t, "user-1", domain.RoleUser)
	counselorToken := signToken(t, "cuser-1", domain.RoleCounselor)

	created := fx.do(t, http.MethodPost, "/api/chat/sessions", userToken, `{"counselor_id":"couns-1"}`)
	id := decodeData(t, created)["id"].(string)

	// The requesting user cannot drive the counselor transitions.
	if w := fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/accept", userToken, ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user accept, got %d", w.Code)
	}

	if w := fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/accept", counselorToken, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 accept, got %d: %s", w.Code, w.Body.String())
	}

	// Declining an already active session is rejected.
	if w := fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/decline", counselorToken, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 decline after accept, got %d", w.Code)
	}

	resolved := fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/resolve", counselorToken, "")
	if resolved.Code != http.StatusOK {
		t.Fatalf("expected 200 resolve, got %d", resolved.Code)
	}
	if data := decodeData(t, resolved); data["status"] != string(domain.StatusResolved) {
		t.Fatalf("expected resolved, got %v", data["status"])
	}
}

func TestRatingEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	userToken := signToken(t, "user-1", domain.RoleUser)
	counselorToken := signToken(t, "cuser-1", domain.RoleCounselor)

	created := fx.do(t, http.MethodPost, "/api/chat/sessions", userToken, `{"counselor_id":"couns-1"}`)
	id := decodeData(t, created)["id"].(string)
	fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/accept", counselorToken, "")

	// Rating before resolution is rejected.
	if w := fx.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/rating", userToken, `{"value":5}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before resolution, got %d", w.Code)
	}

	fx.do(t, http.MethodPost, "/api/counselor/sessions/"+id+"/resolve", counselorToken, "")

	if w := fx.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/rating", userToken, `{"value":7}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range value, got %d", w.Code)
	}

	w := fx.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/rating", userToken, `{"value":5,"comment":"great"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if w := fx.do(t, http.MethodPost, "/api/chat/sessions/"+id+"/rating", userToken, `{"value":4}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second rating, got %d", w.Code)
	}
}

func TestListCounselorsEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	token := signToken(t, "user-1", domain.RoleUser)

	w := fx.do(t, http.MethodGet, "/api/counselors", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0]["id"] != "couns-1" {
		t.Fatalf("unexpected counselor list: %v", envelope.Data)
	}

	single := fx.do(t, http.MethodGet, "/api/counselors/couns-1", token, "")
	if single.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", single.Code)
	}

	missing := fx.do(t, http.MethodGet, "/api/counselors/couns-9", token, "")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestCounselorQueuesEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	userToken := signToken(t, "user-1", domain.RoleUser)
	counselorToken := signToken(t, "cuser-1", domain.RoleCounselor)

	created := fx.do(t, http.MethodPost, "/api/chat/sessions", userToken, `{"counselor_id":"couns-1"}`)
	id := decodeData(t, created)["id"].(string)

	pending := fx.do(t, http.MethodGet, "/api/counselor/sessions/pending", counselorToken, "")
	if pending.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", pending.Code)
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(pending.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0]["id"] != id {
		t.Fatalf("unexpected pending queue: %v", envelope.Data)
	}

	// A plain user has no counselor queues.
	if w := fx.do(t, http.MethodGet, "/api/counselor/sessions/pending", userToken, ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", w.Code)
	}
}
