package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/hazard-map-service/internal/adapter/maplayer"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/geo"
	"github.com/couchcryptid/hazard-map-service/internal/layersync"
	"github.com/couchcryptid/hazard-map-service/internal/pipeline"
)

const maxBodyBytes = 1 << 16

// Fetcher starts catalog fetches.
type Fetcher interface {
	Fetch(ctx context.Context, p domain.FetchParams) (pipeline.Result, error)
	FetchLatest(ctx context.Context) (pipeline.Result, error)
	InFlight() bool
	LastError() error
}

// LayerController owns the filter and the buffer layer.
type LayerController interface {
	Filter() domain.FilterState
	SetFilter(f domain.FilterState) error
	UpdateFilter(fn func(*domain.FilterState)) error
	CreateBuffer(distance float64) (int, error)
	ClearBuffer()
	BufferDistance() (float64, bool)
}

// LayerSource is a rendered layer.
type LayerSource interface {
	Snapshot() maplayer.Snapshot
}

// StatusSource is the status board.
type StatusSource interface {
	Status() maplayer.Status
}

// EventLookup finds loaded events by ID.
type EventLookup interface {
	Get(id string) (domain.HazardEvent, bool)
}

// API serves the dashboard routes.
type API struct {
	fetcher     Fetcher
	layers      LayerController
	eventLayer  LayerSource
	bufferLayer LayerSource
	riverLayer  LayerSource
	board       StatusSource
	events      EventLookup
	logger      *slog.Logger
}

// NewAPI wires the dashboard routes to their collaborators.
func NewAPI(fetcher Fetcher, layers LayerController, eventLayer, bufferLayer, riverLayer LayerSource, board StatusSource, events EventLookup, logger *slog.Logger) *API {
	return &API{
		fetcher:     fetcher,
		layers:      layers,
		eventLayer:  eventLayer,
		bufferLayer: bufferLayer,
		riverLayer:  riverLayer,
		board:       board,
		events:      events,
		logger:      logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events/fetch", a.handleFetch)
	mux.HandleFunc("POST /api/events/latest", a.handleFetchLatest)
	mux.HandleFunc("GET /api/events/{id}", a.handleEvent)
	mux.HandleFunc("GET /api/filter", a.handleGetFilter)
	mux.HandleFunc("PUT /api/filter", a.handlePutFilter)
	mux.HandleFunc("GET /api/layers/events", a.handleLayer(a.eventLayer))
	mux.HandleFunc("GET /api/layers/buffers", a.handleLayer(a.bufferLayer))
	mux.HandleFunc("GET /api/layers/rivers", a.handleLayer(a.riverLayer))
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("POST /api/buffers", a.handleCreateBuffer)
	mux.HandleFunc("DELETE /api/buffers", a.handleClearBuffer)
}

// --- fetch ---

type fetchRequest struct {
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	MinMagnitude *float64 `json:"min_magnitude"`
	Region       string   `json:"region"`
}

func (req fetchRequest) params() (domain.FetchParams, error) {
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		return domain.FetchParams{}, err
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		return domain.FetchParams{}, err
	}
	p := domain.FetchParams{
		Start:        start,
		End:          end,
		MinMagnitude: domain.DefaultMinMagnitude,
		Region:       domain.DefaultRegion,
	}
	if req.MinMagnitude != nil {
		p.MinMagnitude = *req.MinMagnitude
	}
	if req.Region != "" {
		if p.Region, err = domain.ParseRegion(req.Region); err != nil {
			return domain.FetchParams{}, err
		}
	}
	return p, nil
}

func (a *API) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.fetcher.Fetch(r.Context(), p)
	a.writeFetchResult(w, res, err)
}

func (a *API) handleFetchLatest(w http.ResponseWriter, r *http.Request) {
	res, err := a.fetcher.FetchLatest(r.Context())
	a.writeFetchResult(w, res, err)
}

type fetchResponse struct {
	Outcome      pipeline.Outcome `json:"outcome"`
	Count        int              `json:"count"`
	StartDate    string           `json:"start_date,omitempty"`
	EndDate      string           `json:"end_date,omitempty"`
	MinMagnitude float64          `json:"min_magnitude,omitempty"`
	Region       domain.Region    `json:"region,omitempty"`
	LoadedAt     string           `json:"loaded_at,omitempty"`
}

// writeFetchResult maps a fetch outcome to its status code. A loaded fetch
// moves the filter's range to the fetched one, since the dashboard shares
// the date inputs between both.
func (a *API) writeFetchResult(w http.ResponseWriter, res pipeline.Result, err error) {
	var (
		rangeErr *domain.InvalidRangeError
		upErr    *domain.UpstreamError
	)
	switch {
	case errors.As(err, &rangeErr):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.As(err, &upErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":       upErr.Error(),
			"status_code": upErr.StatusCode,
		})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if res.Outcome == pipeline.OutcomeSkipped {
		writeJSON(w, http.StatusConflict, fetchResponse{Outcome: res.Outcome})
		return
	}

	p := res.Range.Params
	err = a.layers.UpdateFilter(func(f *domain.FilterState) {
		f.StartDate, f.EndDate = p.Start, p.End
		f.MinMagnitude, f.Region = p.MinMagnitude, p.Region
	})
	if err != nil {
		a.logger.Warn("filter range not updated after fetch", "error", err)
	}

	writeJSON(w, http.StatusOK, fetchResponse{
		Outcome:      res.Outcome,
		Count:        res.Count,
		StartDate:    domain.FormatDate(p.Start),
		EndDate:      domain.FormatDate(p.End),
		MinMagnitude: p.MinMagnitude,
		Region:       p.Region,
		LoadedAt:     res.Range.LoadedAt.UTC().Format(timeLayout),
	})
}

// --- events ---

type eventDetail struct {
	domain.HazardEvent
	Severity    domain.SeverityClass `json:"severity"`
	Threat      string               `json:"threat"`
	Color       string               `json:"color"`
	Radius      float64              `json:"radius"`
	Pulse       bool                 `json:"pulse"`
	DepthKm     float64              `json:"depth_km"`
	Coordinates string               `json:"coordinates"`
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := a.events.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("event %q not found", id))
		return
	}
	class := e.Severity()
	writeJSON(w, http.StatusOK, eventDetail{
		HazardEvent: e,
		Severity:    class,
		Threat:      domain.ThreatLabel(class),
		Color:       domain.Color(class),
		Radius:      domain.MarkerRadius(e.Magnitude),
		Pulse:       domain.Pulses(e.Magnitude),
		DepthKm:     e.Location.DepthOrZero(),
		Coordinates: fmt.Sprintf("%.4f, %.4f", e.Location.Lat, e.Location.Lon),
	})
}

// --- filter ---

type filterDTO struct {
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	MinMagnitude float64  `json:"min_magnitude"`
	Region       string   `json:"region"`
	Classes      []string `json:"classes"`
}

func toFilterDTO(f domain.FilterState) filterDTO {
	dto := filterDTO{
		MinMagnitude: f.MinMagnitude,
		Region:       string(f.Region),
		Classes:      []string{},
	}
	if !f.StartDate.IsZero() {
		dto.StartDate = domain.FormatDate(f.StartDate)
	}
	if !f.EndDate.IsZero() {
		dto.EndDate = domain.FormatDate(f.EndDate)
	}
	for _, c := range f.Classes.Classes() {
		dto.Classes = append(dto.Classes, c.String())
	}
	return dto
}

func (dto filterDTO) state() (domain.FilterState, error) {
	f := domain.FilterState{
		MinMagnitude: dto.MinMagnitude,
		Region:       domain.RegionGlobal,
		Classes:      domain.AllClassSet(),
	}
	var err error
	if dto.StartDate != "" {
		if f.StartDate, err = domain.ParseDate(dto.StartDate); err != nil {
			return f, err
		}
	}
	if dto.EndDate != "" {
		if f.EndDate, err = domain.ParseDate(dto.EndDate); err != nil {
			return f, err
		}
	}
	if dto.Region != "" {
		if f.Region, err = domain.ParseRegion(dto.Region); err != nil {
			return f, err
		}
	}
	if dto.Classes != nil {
		if f.Classes, err = domain.ParseClassSet(dto.Classes); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (a *API) handleGetFilter(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toFilterDTO(a.layers.Filter()))
}

func (a *API) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var dto filterDTO
	if err := decodeBody(w, r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := dto.state()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.layers.SetFilter(f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toFilterDTO(a.layers.Filter()))
}

// --- layers ---

func (a *API) handleLayer(src LayerSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := src.Snapshot()
		data, err := snap.Collection.MarshalJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("X-Layer-Version", strconv.FormatUint(snap.Version, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// --- status ---

type statusResponse struct {
	Message        string          `json:"message"`
	Online         bool            `json:"online"`
	Stats          json.RawMessage `json:"stats"`
	Error          string          `json:"error,omitempty"`
	FetchInFlight  bool            `json:"fetch_in_flight"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
	Rivers         riversStatus    `json:"rivers"`
	BufferDistance *float64        `json:"buffer_distance_m"`
}

type riversStatus struct {
	Total    int `json:"total"`
	HighRisk int `json:"high_risk"`
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := a.board.Status()
	resp := statusResponse{
		Message:       st.Message,
		Online:        st.Online,
		Stats:         statsJSON(st),
		Error:         st.LastError,
		FetchInFlight: a.fetcher.InFlight(),
		Rivers:        riversStatus{Total: st.RiverCount, HighRisk: st.HighRiskCount},
	}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = st.UpdatedAt.UTC().Format(timeLayout)
	}
	if d, ok := a.layers.BufferDistance(); ok {
		resp.BufferDistance = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

// statsJSON renders the numbers, the error marker in every field after a
// failure, or null before the first load.
func statsJSON(st maplayer.Status) json.RawMessage {
	switch {
	case st.StatsError:
		m := maplayer.StatsErrorMarker
		return mustJSON(map[string]string{"total": m, "critical": m, "average_magnitude": m})
	case st.Stats != nil:
		return mustJSON(st.Stats)
	default:
		return json.RawMessage("null")
	}
}

// --- buffers ---

type bufferRequest struct {
	Distance json.RawMessage `json:"distance"`
}

// distance accepts a JSON number or the raw text of the dashboard input.
func (req bufferRequest) distance() (float64, error) {
	raw := bytes.TrimSpace(req.Distance)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &geo.InvalidDistanceError{Input: "", Reason: "missing"}
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, &geo.InvalidDistanceError{Input: string(raw), Reason: "not a number"}
		}
		return geo.ParseDistance(text)
	}
	var d float64
	if err := json.Unmarshal(raw, &d); err != nil {
		return 0, &geo.InvalidDistanceError{Input: string(raw), Reason: "not a number"}
	}
	if err := geo.ValidateDistance(d); err != nil {
		return 0, err
	}
	return d, nil
}

func (a *API) handleCreateBuffer(w http.ResponseWriter, r *http.Request) {
	var req bufferRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := req.distance()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := a.layers.CreateBuffer(d)
	var distErr *geo.InvalidDistanceError
	switch {
	case errors.As(err, &distErr):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, layersync.ErrNoDataset):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": n, "distance_m": d})
}

func (a *API) handleClearBuffer(w http.ResponseWriter, _ *http.Request) {
	a.layers.ClearBuffer()
	w.WriteHeader(http.StatusNoContent)
}
