package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shelflife/internal/features"
	"shelflife/internal/models"
	"shelflife/internal/narrative"
	"shelflife/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubPredictor struct{}

func (stubPredictor) Predict(inputs []models.PredictionInput) ([]models.PredictionResult, error) {
	out := make([]models.PredictionResult, len(inputs))
	for i, in := range inputs {
		out[i] = models.PredictionResult{
			FoodType:               models.NormalizeFoodType(in.FoodType),
			StorageType:            models.NormalizeStorageType(in.StorageType),
			PredictedRemainingDays: 5,
			RawPrediction:          5,
			SafetyClassification:   models.ConsumeSoon,
			Issues:                 []string{},
			Recommendations:        []string{"Monitor food condition closely"},
			FeatureImportance:      models.FeatureImportance{},
		}
	}
	return out, nil
}

func (stubPredictor) FeatureImportance(int) models.FeatureImportance {
	return models.FeatureImportance{{Feature: "days_stored", Importance: 1}}
}

func (stubPredictor) Schema() features.Schema {
	return features.Constructor{}.Schema()
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	return "answer to: " + prompt, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(pipeline service.Predictor, advisor *narrative.Advisor, secret string) *gin.Engine {
	logger := zap.NewNop()
	svc := service.NewShelfLife(pipeline, nil, nil, advisor, nil, logger)
	r := gin.New()
	NewHandler(svc, secret, logger).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	w := do(newRouter(nil, nil, ""), http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "healthy" || body["service"] != "shelf-life-service" {
		t.Errorf("body: %v", body)
	}
	if body["pipeline_loaded"] != false || body["chat_available"] != false || body["history_enabled"] != false {
		t.Errorf("capabilities: %v", body)
	}
}

func TestPredict(t *testing.T) {
	r := newRouter(stubPredictor{}, nil, "")

	w := do(r, http.MethodPost, "/api/v1/predict", `{"food_type":"durian","storage_type":"pantry","temperature":20}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["food_type"] != "dairy" || body["safety_classification"] != "Consume Soon" {
		t.Errorf("body: %v", body)
	}

	if w := do(r, http.MethodPost, "/api/v1/predict", `{"food_type":`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("malformed json: got %d", w.Code)
	}
}

func TestPredictBatch(t *testing.T) {
	r := newRouter(stubPredictor{}, nil, "")

	w := do(r, http.MethodPost, "/api/v1/predict/batch",
		`{"items":[{"food_type":"meat"},{"food_type":"fruits"}]}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var body struct {
		Results []models.PredictionResult `json:"results"`
		Total   int                       `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.Total != 2 || body.Results[0].FoodType != models.Meat || body.Results[1].FoodType != models.Fruits {
		t.Errorf("body: %+v", body)
	}
}

func TestPredictWithoutPipeline(t *testing.T) {
	w := do(newRouter(nil, nil, ""), http.MethodPost, "/api/v1/predict", `{"food_type":"meat"}`, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	if decode(t, w)["error"] != "prediction failed" {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestExplain(t *testing.T) {
	w := do(newRouter(stubPredictor{}, nil, ""), http.MethodPost, "/api/v1/explain", `{"food_type":"meat"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	explanation, _ := decode(t, w)["explanation"].(string)
	if !strings.Contains(explanation, "Safety Classification: Consume Soon") {
		t.Errorf("explanation: %q", explanation)
	}
}

func TestChatEndpoints(t *testing.T) {
	r := newRouter(stubPredictor{}, narrative.NewAdvisor(echoCompleter{}, nil), "")

	w := do(r, http.MethodPost, "/api/v1/chat", `{"message":"Is milk ok?"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("chat status: got %d", w.Code)
	}
	if body := decode(t, w); body["success"] != true || body["response"] != "answer to: Is milk ok?" {
		t.Errorf("chat body: %v", body)
	}

	if w := do(r, http.MethodPost, "/api/v1/chat", `{}`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing message: got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/v1/chat/prediction-explanation", `{"food_type":"meat"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("prediction explanation status: got %d", w.Code)
	}
	answers, _ := decode(t, w)["explanation"].([]any)
	if len(answers) != len(narrative.ExplanationQuestions) {
		t.Errorf("got %d answers", len(answers))
	}

	w = do(r, http.MethodPost, "/api/v1/chat/storage-advice", `{"food_type":"bakery","storage_conditions":{"storage_type":"pantry"}}`, "")
	if w.Code != http.StatusOK {
		t.Errorf("storage advice status: got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/v1/chat/safety-guidelines", `{"food_type":"seafood"}`, "")
	if w.Code != http.StatusOK {
		t.Errorf("safety guidelines status: got %d", w.Code)
	}
}

func TestChatUnavailable(t *testing.T) {
	w := do(newRouter(stubPredictor{}, nil, ""), http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	r := newRouter(stubPredictor{}, nil, "")

	if w := do(r, http.MethodGet, "/api/v1/predictions", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("list: got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/predictions?limit=0", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/predictions/abc", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("get: got %d", w.Code)
	}
}

func TestModelInfo(t *testing.T) {
	w := do(newRouter(stubPredictor{}, nil, ""), http.MethodGet, "/api/v1/model/info", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	want := features.Constructor{}.Schema().Fingerprint()
	body := decode(t, w)
	if body["schema_fingerprint"] != want {
		t.Errorf("fingerprint: %v", body["schema_fingerprint"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	r := newRouter(stubPredictor{}, nil, secret)
	body := `{"food_type":"meat"}`

	if w := do(r, http.MethodPost, "/api/v1/predict", body, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/predict", body, "not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d", w.Code)
	}

	wrong, err := IssueToken([]byte("other-secret"), "alice", "user", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if w := do(r, http.MethodPost, "/api/v1/predict", body, wrong); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: got %d", w.Code)
	}

	expired, err := IssueToken([]byte(secret), "alice", "user", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	w := do(r, http.MethodPost, "/api/v1/predict", body, expired)
	if w.Code != http.StatusUnauthorized || decode(t, w)["error"] != "Token expired" {
		t.Errorf("expired token: got %d %s", w.Code, w.Body.String())
	}

	valid, err := IssueToken([]byte(secret), "alice", "user", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if w := do(r, http.MethodPost, "/api/v1/predict", body, valid); w.Code != http.StatusOK {
		t.Errorf("valid token: got %d", w.Code)
	}

	if w := do(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health must stay public: got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/x", "", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing allow-origin header")
	}
}
