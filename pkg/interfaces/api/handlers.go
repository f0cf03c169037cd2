package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/application/services/fx"
	"github.com/vsinha/mbom/pkg/application/services/lifecycle"
	"github.com/vsinha/mbom/pkg/application/services/requirements"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/xlsx"
)

// Services are the application services exposed over HTTP. Lifecycle is optional;
// without it the BOM mutation routes are not registered. The BOM import route also
// needs Catalog.
type Services struct {
	Costing      *costing.Service
	Reports      *costing.ReportService
	Requirements *requirements.PlanService
	Lifecycle    *lifecycle.Service
	Products     repositories.ProductRepository
	Catalog      lifecycle.Catalog
}

// Handler serves the costing API
type Handler struct {
	svc      Services
	validate *validator.Validate
	logger   logrus.FieldLogger
}

func NewHandler(svc Services, logger logrus.FieldLogger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// RequirementsRequest asks for the requirements of a period. Without entries the
// stored production plan of the period is exploded.
type RequirementsRequest struct {
	Period  string             `json:"period" validate:"required,len=7"`
	Entries []PlanEntryRequest `json:"entries,omitempty" validate:"omitempty,dive"`
}

type PlanEntryRequest struct {
	ProductCode string          `json:"product_code" validate:"required,max=64"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// NearestRateQuery selects a rate of the FX history
type NearestRateQuery struct {
	Currency string `form:"currency" validate:"required,min=3,max=10"`
	Date     string `form:"date"`
	Kind     string `form:"kind" validate:"omitempty,oneof=BUY SELL AVERAGE"`
	AnyKind  bool   `form:"any_kind"`
}

type rateResponse struct {
	Currency      entities.Currency `json:"currency"`
	Rate          decimal.Decimal   `json:"rate"`
	RequestedDate string            `json:"requested_date"`
	MatchedDate   string            `json:"matched_date"`
	RequestedKind entities.RateKind `json:"requested_kind"`
	KindUsed      entities.RateKind `json:"kind_used"`
	SearchOrigin  string            `json:"search_origin"`
	IsEstimate    bool              `json:"is_estimate"`
}

type headerResponse struct {
	ID         entities.BOMID     `json:"id"`
	ProductID  entities.ProductID `json:"product_id"`
	Revision   string             `json:"revision"`
	State      entities.BOMState  `json:"state"`
	ValidFrom  *string            `json:"valid_from,omitempty"`
	ValidUntil *string            `json:"valid_until,omitempty"`
	Notes      string             `json:"notes,omitempty"`
}

type importResponse struct {
	Header  headerResponse   `json:"header"`
	Lines   []lineResponse   `json:"lines"`
	Drafts  []entities.BOMID `json:"drafts"`
	Created []string         `json:"created"`
}

type lineResponse struct {
	ID                  entities.BOMLineID `json:"id"`
	BOMID               entities.BOMID     `json:"bom_id"`
	LineNumber          int                `json:"line_number"`
	ChildProductID      entities.ProductID `json:"child_product_id"`
	Quantity            decimal.Decimal    `json:"quantity"`
	UnitID              entities.UnitID    `json:"unit_id"`
	ScrapFactor         decimal.Decimal    `json:"scrap_factor"`
	OperationSequence   *int               `json:"operation_sequence,omitempty"`
	AlternativeGroup    string             `json:"alternative_group,omitempty"`
	ReferenceDesignator string             `json:"reference_designator,omitempty"`
	Notes               string             `json:"notes,omitempty"`
}

// GET /api/v1/mboms/:id/costs
func (h *Handler) GetBOMCosts(c *gin.Context) {
	bomID, ok := h.bomID(c)
	if !ok {
		return
	}
	breakdown, err := h.svc.Costing.Explode(c.Request.Context(), bomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponse(c, breakdown)
}

// GET /api/v1/products/:code/costs
func (h *Handler) GetProductCosts(c *gin.Context) {
	product, err := h.svc.Products.GetProductByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	breakdown, err := h.svc.Costing.ExplodeProduct(c.Request.Context(), product.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponse(c, breakdown)
}

// GET /api/v1/reports/costs?codes=A,B
func (h *Handler) GetCostReport(c *gin.Context) {
	var codes []string
	if raw := c.Query("codes"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
	}
	rows, err := h.svc.Reports.CostProducts(c.Request.Context(), codes)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponseWithMeta(c, rows, gin.H{
		"count":    len(rows),
		"currency": h.svc.Costing.Config().DisplayCurrency,
	})
}

// POST /api/v1/plans/requirements
func (h *Handler) PostRequirements(c *gin.Context) {
	var req RequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestResponse(c, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(c, err)
		return
	}
	period, err := entities.ParsePeriod(req.Period)
	if err != nil {
		badRequestResponse(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if len(req.Entries) == 0 {
		report, err := h.svc.Requirements.Explode(ctx, period)
		if err != nil {
			h.fail(c, err)
			return
		}
		successResponse(c, report)
		return
	}

	entries := make([]*entities.PlanEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if !e.Quantity.IsPositive() {
			badRequestResponse(c, "quantity of "+e.ProductCode+" must be positive")
			return
		}
		product, err := h.svc.Products.GetProductByCode(ctx, e.ProductCode)
		if err != nil {
			h.fail(c, err)
			return
		}
		entries = append(entries, &entities.PlanEntry{ProductID: product.ID, Period: period, Quantity: e.Quantity})
	}
	report, err := h.svc.Requirements.ExplodeEntries(ctx, period, entries)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponse(c, report)
}

// GET /api/v1/fx/nearest?currency=&date=&kind=&any_kind=
func (h *Handler) GetNearestRate(c *gin.Context) {
	var q NearestRateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequestResponse(c, "Invalid query")
		return
	}
	q.Kind = strings.ToUpper(strings.TrimSpace(q.Kind))
	if err := h.validate.Struct(q); err != nil {
		h.fail(c, err)
		return
	}

	day := h.svc.Costing.Normalizer().Today()
	if q.Date != "" {
		parsed, err := time.Parse(time.DateOnly, q.Date)
		if err != nil {
			badRequestResponse(c, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	kind := h.svc.Costing.Config().RateKind
	if q.Kind != "" {
		kind = entities.RateKind(q.Kind)
	}

	resolver := h.svc.Costing.Resolver()
	currency := entities.Currency(q.Currency)
	var (
		match *fx.Match
		err   error
	)
	if q.AnyKind {
		match, err = resolver.NearestRateAnyKind(c.Request.Context(), currency, day, kind)
	} else {
		match, err = resolver.NearestRate(c.Request.Context(), currency, day, kind)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if match == nil {
		notFoundResponse(c, "no "+string(kind)+" rate for "+string(currency.Normalize()))
		return
	}
	successResponse(c, rateResponse{
		Currency:      match.Currency,
		Rate:          match.Rate,
		RequestedDate: match.RequestedDate.Format(time.DateOnly),
		MatchedDate:   match.MatchedDate.Format(time.DateOnly),
		RequestedKind: match.RequestedKind,
		KindUsed:      match.KindUsed,
		SearchOrigin:  match.SearchOrigin,
		IsEstimate:    match.IsEstimate,
	})
}

// POST /api/v1/mboms/:id/activate
func (h *Handler) ActivateBOM(c *gin.Context) {
	bomID, ok := h.bomID(c)
	if !ok {
		return
	}
	header, err := h.svc.Lifecycle.Activate(c.Request.Context(), bomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponse(c, toHeaderResponse(header))
}

// POST /api/v1/mboms/:id/clone
func (h *Handler) CloneBOM(c *gin.Context) {
	bomID, ok := h.bomID(c)
	if !ok {
		return
	}
	header, err := h.svc.Lifecycle.CloneToDraft(c.Request.Context(), bomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	createdResponse(c, toHeaderResponse(header))
}

// PUT /api/v1/mboms/:id/lines
func (h *Handler) UpsertLine(c *gin.Context) {
	bomID, ok := h.bomID(c)
	if !ok {
		return
	}
	var in dto.LineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequestResponse(c, "Invalid request body")
		return
	}
	in.BOMID = bomID
	line, err := h.svc.Lifecycle.UpsertLine(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	successResponse(c, toLineResponse(line))
}

// POST /api/v1/products/:code/mbom/import (multipart form, field "file")
func (h *Handler) ImportBOMTree(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequestResponse(c, "a file field with an .xlsx or .csv export is required")
		return
	}
	defer file.Close()

	rows, err := xlsx.LoadBOMTree(file, header.Filename)
	if err != nil {
		badRequestResponse(c, err.Error())
		return
	}
	tree, err := lifecycle.BuildTree(rows, c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Lifecycle.ImportTree(c.Request.Context(), h.svc.Catalog, tree)
	if err != nil {
		h.fail(c, err)
		return
	}

	lines := make([]lineResponse, 0, len(res.Lines))
	for _, l := range res.Lines {
		lines = append(lines, toLineResponse(l))
	}
	created := res.Created
	if created == nil {
		created = []string{}
	}
	createdResponse(c, importResponse{
		Header:  toHeaderResponse(res.Root),
		Lines:   lines,
		Drafts:  res.Drafts,
		Created: created,
	})
}

func (h *Handler) bomID(c *gin.Context) (entities.BOMID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequestResponse(c, "bom id must be a positive integer")
		return 0, false
	}
	return entities.BOMID(id), true
}

// fail maps service errors onto status codes
func (h *Handler) fail(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		validationErrorResponse(c, verrs)
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, costing.ErrBOMNotFound):
		notFoundResponse(c, err.Error())
	case errors.Is(err, entities.ErrInvalidQuantity),
		errors.Is(err, entities.ErrInvalidScrapFactor),
		errors.Is(err, lifecycle.ErrImportRoot),
		errors.Is(err, lifecycle.ErrEmptyImport),
		errors.Is(err, lifecycle.ErrMissingCode):
		badRequestResponse(c, err.Error())
	case errors.Is(err, lifecycle.ErrCycle),
		errors.Is(err, lifecycle.ErrDuplicateLine),
		errors.Is(err, lifecycle.ErrArchived),
		errors.Is(err, entities.ErrInvalidTransition):
		conflictResponse(c, err.Error())
	default:
		_ = c.Error(err)
		h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
		internalErrorResponse(c)
	}
}

func toHeaderResponse(header *entities.BOMHeader) headerResponse {
	return headerResponse{
		ID:         header.ID,
		ProductID:  header.ProductID,
		Revision:   header.Revision,
		State:      header.State,
		ValidFrom:  formatDate(header.ValidFrom),
		ValidUntil: formatDate(header.ValidUntil),
		Notes:      header.Notes,
	}
}

func toLineResponse(line *entities.BOMLine) lineResponse {
	return lineResponse{
		ID:                  line.ID,
		BOMID:               line.BOMID,
		LineNumber:          line.LineNumber,
		ChildProductID:      line.ChildProductID,
		Quantity:            line.Quantity,
		UnitID:              line.UnitID,
		ScrapFactor:         line.ScrapFactor,
		OperationSequence:   line.OperationSequence,
		AlternativeGroup:    line.AlternativeGroup,
		ReferenceDesignator: line.ReferenceDesignator,
		Notes:               line.Notes,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
