// Package server exposes the SRD store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/tome/internal/srdsync"
	"github.com/mesh-intelligence/tome/pkg/types"
)

// Syncer runs official data refreshes.
type Syncer interface {
	Sync(ctx context.Context, force bool) srdsync.Result
	SyncType(ctx context.Context, t types.EntryType) srdsync.Result
	NeedsSync() (bool, error)
}

// Handler serves the /api/srd routes.
type Handler struct {
	Store  types.Store
	Syncer Syncer
}

type statusResponse struct {
	types.Metadata
	NeedsSync bool `json:"needsSync"`
}

// Search runs a filtered query. Only type is required.
func (h *Handler) Search(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.Store.Fetch(q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetEntry returns one entry of either partition.
func (h *Handler) GetEntry(c *gin.Context) {
	t, err := types.ParseEntryType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	e, err := h.Store.GetEntry(t, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// AddCustom stores the request body as a new custom entry.
func (h *Handler) AddCustom(c *gin.Context) {
	t, err := types.ParseEntryType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := types.DecodeEntry(t, body)
	if err != nil {
		respondError(c, err)
		return
	}
	added, err := h.Store.AddCustomEntry(t, e)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// UpdateCustom merges the request body into a custom entry.
func (h *Handler) UpdateCustom(c *gin.Context) {
	t, err := types.ParseEntryType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.Store.UpdateCustomEntry(t, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveCustom deletes a custom entry.
func (h *Handler) RemoveCustom(c *gin.Context) {
	t, err := types.ParseEntryType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.RemoveCustomEntry(t, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Status returns the metadata record and whether a sync is due.
func (h *Handler) Status(c *gin.Context) {
	meta, err := h.Store.Metadata()
	if err != nil {
		respondError(c, err)
		return
	}
	needs, err := h.Syncer.NeedsSync()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{Metadata: meta, NeedsSync: needs})
}

// Sync refreshes official data: one type when ?type= is given, otherwise
// all of them, skipping fresh data unless ?force=true.
func (h *Handler) Sync(c *gin.Context) {
	var res srdsync.Result
	if raw := c.Query("type"); raw != "" {
		t, err := types.ParseEntryType(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		res = h.Syncer.SyncType(c.Request.Context(), t)
	} else {
		force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
		res = h.Syncer.Sync(c.Request.Context(), force)
	}

	switch {
	case res.Success:
		c.JSON(http.StatusOK, res)
	case res.Message == srdsync.ErrSyncInProgress.Error():
		c.JSON(http.StatusConflict, res)
	default:
		c.JSON(http.StatusBadGateway, res)
	}
}

// parseQuery reads the search parameters. Malformed numbers and booleans
// are reported as ErrInvalidFilter.
func parseQuery(c *gin.Context) (types.Query, error) {
	var q types.Query
	t, err := types.ParseEntryType(c.Query("type"))
	if err != nil {
		return q, err
	}
	q.Type = t
	q.Text = c.Query("query")
	if q.Source, err = types.ParseSource(c.Query("source")); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(c, "offset"); err != nil {
		return q, err
	}

	f := &q.Filter
	if f.CRMin, err = floatPtrParam(c, "crMin"); err != nil {
		return q, err
	}
	if f.CRMax, err = floatPtrParam(c, "crMax"); err != nil {
		return q, err
	}
	if f.Level, err = intPtrParam(c, "level"); err != nil {
		return q, err
	}
	if f.Ritual, err = boolPtrParam(c, "ritual"); err != nil {
		return q, err
	}
	if f.Concentration, err = boolPtrParam(c, "concentration"); err != nil {
		return q, err
	}
	f.School = c.Query("school")
	f.Rarity = c.Query("rarity")
	f.ItemType = c.Query("itemType")
	f.MonsterType = c.Query("monsterType")
	f.Size = c.Query("size")
	return q, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	p, err := intPtrParam(c, name)
	if err != nil || p == nil {
		return 0, err
	}
	return *p, nil
}

func intPtrParam(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", types.ErrInvalidFilter, name, raw)
	}
	return &v, nil
}

func floatPtrParam(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", types.ErrInvalidFilter, name, raw)
	}
	return &v, nil
}

func boolPtrParam(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", types.ErrInvalidFilter, name, raw)
	}
	return &v, nil
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidEntryType),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrOfficialReadOnly):
		return http.StatusForbidden
	case errors.Is(err, types.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, types.ErrStoreDetached):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
