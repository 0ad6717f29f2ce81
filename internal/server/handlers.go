package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/extraction"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/workflow"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"name":    s.cfg.ServerName,
		"version": s.cfg.Version,
	})
}

// createMappingRequest is the payload for manual mapping creation.
type createMappingRequest struct {
	DocumentType         string            `json:"document_type" binding:"required"`
	SourceTable          string            `json:"source_table" binding:"required"`
	SourceField          string            `json:"source_field" binding:"required"`
	DestinationFieldName string            `json:"destination_field_name" binding:"required"`
	FilterCondition      map[string]string `json:"filter_condition,omitempty"`
	ConfidenceScore      *float64          `json:"confidence_score,omitempty"`
	Status               mapping.Status    `json:"mapping_status,omitempty"`
	Notes                string            `json:"notes,omitempty"`
}

func (s *Server) handleCreateMapping(c *gin.Context) {
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.FilterCondition) > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter_condition may have at most one key"})
		return
	}

	status := req.Status
	if status == "" {
		status = mapping.StatusManual
	}
	m := &mapping.FieldMapping{
		DocumentType:         req.DocumentType,
		SourceTable:          req.SourceTable,
		SourceField:          req.SourceField,
		DestinationFieldName: req.DestinationFieldName,
		ConfidenceScore:      req.ConfidenceScore,
		MappingStatus:        status,
		IsActive:             true,
		Notes:                req.Notes,
	}
	for key, value := range req.FilterCondition {
		m.SetFilterCondition(key, value)
	}

	if err := s.mappings.Create(m); err != nil {
		if errors.Is(err, mapping.ErrMappingConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleListMappings(c *gin.Context) {
	mappings, err := s.mappings.ListByDocumentType(c.Query("document_type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mappings)
}

func (s *Server) handleUpdateMapping(c *gin.Context) {
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.FilterCondition) > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter_condition may have at most one key"})
		return
	}

	m, err := s.mappings.Get(c.Param("id"))
	if err != nil {
		s.writeMappingError(c, err)
		return
	}
	m.DocumentType = req.DocumentType
	m.SourceTable = req.SourceTable
	m.SourceField = req.SourceField
	m.DestinationFieldName = req.DestinationFieldName
	m.ConfidenceScore = req.ConfidenceScore
	if req.Status != "" {
		m.MappingStatus = req.Status
	}
	if req.Notes != "" {
		m.Notes = req.Notes
	}
	m.SetFilterCondition("", "")
	for key, value := range req.FilterCondition {
		m.SetFilterCondition(key, value)
	}

	if err := s.mappings.Update(m); err != nil {
		s.writeMappingError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleDeleteMapping(c *gin.Context) {
	if err := s.mappings.Delete(c.Param("id")); err != nil {
		s.writeMappingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleVerifyMapping(c *gin.Context) {
	if err := s.mappings.Verify(c.Param("id")); err != nil {
		s.writeMappingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": c.Param("id")})
}

func (s *Server) handleDeleteMappingsByType(c *gin.Context) {
	documentType := c.Query("document_type")
	if documentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_type query parameter is required"})
		return
	}
	deleted, err := s.mappings.DeleteByDocumentType(documentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) handleExportMappings(c *gin.Context) {
	data, err := s.mappings.ExportJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) handleImportMappings(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.mappings.ImportJSON(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// resolveRequest carries optional classifier results into a resolver run.
type resolveRequest struct {
	DocumentType string                     `json:"document_type" binding:"required"`
	Classifier   []mapping.ClassifierResult `json:"classifier_results,omitempty"`
	// Persist commits the matched candidates to the repository after
	// resolution. Unmatched fields are never persisted.
	Persist bool `json:"persist,omitempty"`
}

func (s *Server) handleResolveMappings(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.reader.ReadFile(s.cfg.TemplatePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	labels, err := form.HarvestLabels(s.cfg.TemplatePath, info.Fields)
	if err != nil {
		// Heuristics degrade gracefully without labels.
		labels = nil
	}

	result := mapping.Resolve(mapping.ResolveInput{
		DocumentType: req.DocumentType,
		Catalog:      s.catalog,
		Descriptors:  info.Fields,
		Labels:       labels,
		Classifier:   req.Classifier,
	})

	response := gin.H{
		"candidates":      result.Candidates,
		"unmatched":       result.Unmatched,
		"unmatched_count": result.UnmatchedCount,
	}
	if req.Persist {
		imported, err := s.mappings.BulkInsert(result.Candidates)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response["persisted"] = imported
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleTemplateFields(c *gin.Context) {
	info, err := s.reader.ReadFile(s.cfg.TemplatePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	export := form.BuildCoordinateExport(filepath.Base(s.cfg.TemplatePath), info)
	c.JSON(http.StatusOK, export)
}

// ingestRequest submits one uploaded document for extraction.
type ingestRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	DocumentType  string `json:"document_type" binding:"required"`
	SourceTable   string `json:"source_table" binding:"required"`
	Discriminator string `json:"discriminator,omitempty"`
	SourceFile    string `json:"source_file,omitempty"`
	Content       string `json:"content" binding:"required"` // base64 document bytes
}

func (s *Server) handleIngestDocument(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be base64"})
		return
	}
	if int64(len(content)) > s.cfg.MaxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document exceeds maximum file size"})
		return
	}

	extracted, err := s.extractor.Extract(c.Request.Context(), req.DocumentType, req.Discriminator, content)
	if err != nil {
		// Step-scoped: the caller may retry or skip; nothing is aborted.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	record, err := extraction.NewRecord(
		req.UserID, req.DocumentType, req.SourceTable, req.SourceFile,
		extracted.Fields, extracted.ConfidenceScores, s.catalog,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.records.Save(record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleWorkflowStatus(c *gin.Context) {
	status, err := s.orchestrator.GetStatus(c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleAdvance(c *gin.Context) {
	result, err := s.orchestrator.Advance(c.Param("user"))
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"step":                  result.Step,
		"output_reference":      result.OutputPath,
		"filled_fields":         result.Stats.FilledFields,
		"filled_count":          result.Stats.FilledCount,
		"total_fields":          result.Stats.TotalTemplateFields,
		"completion_percentage": result.Stats.CompletionPercentage,
		"skipped_fields":        result.Stats.SkippedFields,
		"failed_fields":         result.Stats.FailedFields,
		"workflow_completed":    result.Completed,
	})
}

func (s *Server) handleBack(c *gin.Context) {
	status, err := s.orchestrator.Back(c.Param("user"))
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSkip(c *gin.Context) {
	status, err := s.orchestrator.Skip(c.Param("user"))
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) writeMappingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mapping.ErrMappingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, mapping.ErrMappingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) writeWorkflowError(c *gin.Context, err error) {
	var loadErr *form.TemplateLoadError
	switch {
	case errors.Is(err, workflow.ErrNoExtractionRow),
		errors.Is(err, workflow.ErrSkipNotAllowed),
		errors.Is(err, workflow.ErrWorkflowComplete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &loadErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
