package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/application/services/lifecycle"
	"github.com/vsinha/mbom/pkg/application/services/requirements"
	"github.com/vsinha/mbom/pkg/domain/entities"
	testhelpers "github.com/vsinha/mbom/pkg/infrastructure/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *Error          `json:"error"`
	Meta    map[string]any  `json:"meta"`
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupRouter(t *testing.T, f *testhelpers.Fixture) *gin.Engine {
	t.Helper()
	logger := newTestLogger()
	cfg := costing.DefaultConfig()
	cfg.Now = testhelpers.Clock
	costingSvc := costing.NewService(cfg, f.Store, f.Store, f.Store, f.Store, logger)
	return NewRouter(Services{
		Costing:      costingSvc,
		Reports:      costing.NewReportService(costingSvc, logger),
		Requirements: requirements.NewPlanService(costingSvc, f.Store, f.Store, f.Store, f.Store, logger),
		Lifecycle:    lifecycle.NewService(f.Store, logger, lifecycle.WithClock(testhelpers.Clock)),
		Products:     f.Store,
		Catalog:      f.Store,
	}, logger)
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestHealthAndRequestID(t *testing.T) {
	r := setupRouter(t, testhelpers.BuildBikeScenario())

	w, _ := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	w, env := do(t, r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestGetBOMCosts(t *testing.T) {
	r := setupRouter(t, testhelpers.BuildBikeScenario())

	w, env := do(t, r, http.MethodGet, "/api/v1/mboms/1/costs", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var breakdown struct {
		ProductID entities.ProductID `json:"product_id"`
		Total     decimal.Decimal    `json:"total"`
		Currency  string             `json:"currency"`
		AlertFX   bool               `json:"alert_fx"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &breakdown))
	assert.Equal(t, testhelpers.BikeID, breakdown.ProductID)
	assert.True(t, breakdown.Total.Equal(testhelpers.Dec("120990")), breakdown.Total.String())
	assert.Equal(t, "ARS", breakdown.Currency)
	assert.True(t, breakdown.AlertFX)

	w, env = do(t, r, http.MethodGet, "/api/v1/mboms/999/costs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/mboms/abc/costs", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/products/FRAME/costs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &breakdown))
	assert.True(t, breakdown.Total.Equal(testhelpers.Dec("25800")))

	w, _ = do(t, r, http.MethodGet, "/api/v1/products/TUBE/costs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCostReport(t *testing.T) {
	r := setupRouter(t, testhelpers.BuildBikeScenario())

	w, env := do(t, r, http.MethodGet, "/api/v1/reports/costs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.Meta["count"])
	assert.Equal(t, "ARS", env.Meta["currency"])

	var rows []struct {
		Code  string          `json:"code"`
		Total decimal.Decimal `json:"total"`
	}
	w, env = do(t, r, http.MethodGet, "/api/v1/reports/costs?codes=WHEEL,%20FRAME", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "FRAME", rows[0].Code)
	assert.True(t, rows[1].Total.Equal(testhelpers.Dec("45200")))

	w, _ = do(t, r, http.MethodGet, "/api/v1/reports/costs?codes=NOPE", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostRequirements(t *testing.T) {
	f := testhelpers.BuildBikeScenario()
	f.Plan(entities.Period{Year: 2024, Month: 6}, testhelpers.BikeID, "2")
	r := setupRouter(t, f)

	type report struct {
		Period string `json:"period"`
		Lines  []struct {
			Code  string          `json:"code"`
			Gross decimal.Decimal `json:"gross_quantity"`
		} `json:"lines"`
	}

	w, env := do(t, r, http.MethodPost, "/api/v1/plans/requirements", gin.H{"period": "2024-06"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stored report
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, "2024-06", stored.Period)
	require.Len(t, stored.Lines, 5)

	w, env = do(t, r, http.MethodPost, "/api/v1/plans/requirements", gin.H{
		"period":  "2024-07",
		"entries": []gin.H{{"product_code": "FRAME", "quantity": "4"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var adhoc report
	require.NoError(t, json.Unmarshal(env.Data, &adhoc))
	require.Len(t, adhoc.Lines, 2)
	assert.Equal(t, "PAINT", adhoc.Lines[0].Code)
	assert.Equal(t, "TUBE", adhoc.Lines[1].Code)
	assert.True(t, adhoc.Lines[1].Gross.Equal(testhelpers.Dec("10")))

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing period", gin.H{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed period", gin.H{"period": "2024/06"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"entry without code", gin.H{"period": "2024-06", "entries": []gin.H{{"quantity": "1"}}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"zero quantity", gin.H{"period": "2024-06", "entries": []gin.H{{"product_code": "BIKE", "quantity": "0"}}}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown product", gin.H{"period": "2024-06", "entries": []gin.H{{"product_code": "NOPE", "quantity": "1"}}}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, "/api/v1/plans/requirements", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestGetNearestRate(t *testing.T) {
	r := setupRouter(t, testhelpers.BuildBikeScenario())

	type quote struct {
		Rate         decimal.Decimal `json:"rate"`
		MatchedDate  string          `json:"matched_date"`
		SearchOrigin string          `json:"search_origin"`
		IsEstimate   bool            `json:"is_estimate"`
	}

	w, env := do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=usd&date=2024-06-14", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var q quote
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "2024-06-08", q.MatchedDate)
	assert.Equal(t, "past", q.SearchOrigin)
	assert.True(t, q.IsEstimate)

	w, env = do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=USD", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "2024-06-15", q.MatchedDate)
	assert.Equal(t, "exact", q.SearchOrigin)
	assert.True(t, q.Rate.Equal(testhelpers.Dec("1000")))

	w, _ = do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=GBP", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=USD&kind=spot", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=USD&date=14/06/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/fx/nearest?currency=USD&kind=sell&any_kind=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var anyKind struct {
		KindUsed entities.RateKind `json:"kind_used"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &anyKind))
	assert.Equal(t, entities.RateKindAverage, anyKind.KindUsed)
}

func TestLifecycleRoutes(t *testing.T) {
	f := testhelpers.BuildBikeScenario()
	light := f.Product(250, "LIGHT", entities.ProductTypeRawMaterial)
	r := setupRouter(t, f)

	w, env := do(t, r, http.MethodPost, "/api/v1/mboms/1/clone", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var draft headerResponse
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Equal(t, "B", draft.Revision)
	assert.Equal(t, entities.BOMStateDraft, draft.State)

	linesPath := fmt.Sprintf("/api/v1/mboms/%d/lines", draft.ID)
	w, env = do(t, r, http.MethodPut, linesPath, gin.H{
		"child_product_id": light,
		"quantity":         "1",
		"unit_id":          testhelpers.UnitEach,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var line lineResponse
	require.NoError(t, json.Unmarshal(env.Data, &line))
	assert.Equal(t, draft.ID, line.BOMID)
	assert.Equal(t, 41, line.LineNumber)

	w, env = do(t, r, http.MethodPut, linesPath, gin.H{"child_product_id": light, "quantity": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = do(t, r, http.MethodPut, linesPath, gin.H{"child_product_id": light, "quantity": "0", "unit_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = do(t, r, http.MethodPut, linesPath, gin.H{"line_number": 10, "child_product_id": light, "quantity": "1", "unit_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	w, env = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/mboms/%d/activate", draft.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var activated headerResponse
	require.NoError(t, json.Unmarshal(env.Data, &activated))
	assert.Equal(t, entities.BOMStateActive, activated.State)

	// the previous revision is archived and read-only
	w, _ = do(t, r, http.MethodPut, "/api/v1/mboms/1/lines", gin.H{"child_product_id": light, "quantity": "1", "unit_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/mboms/1/activate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/mboms/999/activate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func upload(t *testing.T, r http.Handler, path, filename, content string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestImportBOMTree(t *testing.T) {
	f := testhelpers.BuildBikeScenario()
	r := setupRouter(t, f)
	export := "codart;descripcion;nivel;cantidad\n" +
		"BIKE;City bike;0;\n" +
		"FRAME;Steel frame;1;1\n" +
		"TUBE;Steel tube;2;2,5\n" +
		"SADDLE;Saddle;1;1\n"

	w, env := upload(t, r, "/api/v1/products/BIKE/mbom/import", "bike.csv", export)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res importResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "B", res.Header.Revision)
	assert.Equal(t, entities.BOMStateDraft, res.Header.State)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, testhelpers.FrameID, res.Lines[0].ChildProductID)
	assert.Equal(t, 20, res.Lines[1].LineNumber)
	assert.Len(t, res.Drafts, 2)
	assert.Equal(t, []string{"SADDLE"}, res.Created)

	// a second upload reuses the drafts and registers nothing new
	w, env = upload(t, r, "/api/v1/products/BIKE/mbom/import", "bike.csv", export)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{}, res.Created)
	assert.Len(t, res.Lines, 2)

	w, env = upload(t, r, "/api/v1/products/FRAME/mbom/import", "bike.csv", export)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "import root does not match")

	w, env = upload(t, r, "/api/v1/products/BIKE/mbom/import", "bike.csv", "codart;cantidad\nBIKE;1\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, _ = upload(t, r, "/api/v1/products/TRIKE/mbom/import", "trike.csv", "codart;nivel;cantidad\nFRAME;1;1\n")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodPost, "/api/v1/products/BIKE/mbom/import", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "file field")
}
