package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/document"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// multipartOverhead is allowed on top of the file size limit for form boundaries and headers
const multipartOverhead = 1 << 20

type BotRefResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FileResponse struct {
	ID             string           `json:"id"`
	FileID         string           `json:"fileId"`
	Filename       string           `json:"filename"`
	Purpose        string           `json:"purpose"`
	Bytes          int64            `json:"bytes"`
	CreatedAt      time.Time        `json:"createdAt"`
	AssociatedBots []BotRefResponse `json:"associatedBots"`
}

type UploadResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	File    *FileResponse `json:"file,omitempty"`
	Warning string        `json:"warning,omitempty"`
	FileID  string        `json:"fileId,omitempty"`
}

type FileRequest struct {
	FileID string   `json:"fileId"`
	BotIDs []string `json:"botIds"`
}

type AssociationsResponse struct {
	AssociatedBotIDs []string `json:"associatedBotIds"`
}

type AssociateResponse struct {
	Success            bool     `json:"success"`
	AssociatedBots     []string `json:"associatedBots"`
	FailedAssociations int      `json:"failedAssociations"`
}

type DisassociateResponse struct {
	Success         bool     `json:"success"`
	RemovedFromBots []string `json:"removedFromBots"`
	FailedRemovals  int      `json:"failedRemovals"`
}

func toFileResponse(f *db.File, bots []db.BotRef) *FileResponse {
	resp := &FileResponse{
		ID:             f.ID,
		FileID:         f.RemoteFileID,
		Filename:       f.Filename,
		Purpose:        f.Purpose,
		Bytes:          f.Bytes,
		CreatedAt:      f.CreatedAt,
		AssociatedBots: make([]BotRefResponse, 0, len(bots)),
	}
	for _, b := range bots {
		resp.AssociatedBots = append(resp.AssociatedBots, BotRefResponse{ID: b.ID, Name: b.Name})
	}
	return resp
}

// FileHandlers serves uploads and file to bot associations
type FileHandlers struct {
	config          *app.Config
	documentService *document.DocumentService
}

func NewFileHandlers(config *app.Config) *FileHandlers {
	return &FileHandlers{
		config:          config,
		documentService: document.NewDocumentService(config),
	}
}

// ListFilesHandler returns the caller's files with their bots, newest first
func (h *FileHandlers) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := h.documentService.List(currentUserID(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	resp := make([]*FileResponse, 0, len(files))
	for i := range files {
		resp = append(resp, toFileResponse(&files[i].File, files[i].Bots))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadFileHandler accepts a multipart "file" field and uploads it to the provider
func (h *FileHandlers) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.config.AppConfig.Provider.MaxUploadBytes
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendServiceError(w, r, fmt.Errorf("%w: %v", document.ErrFileTooLarge, err))
			return
		}
		sendError(w, http.StatusBadRequest, "File is required", CodeValidationFailed, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Failed to read file", CodeValidationFailed, err)
		return
	}

	result, err := h.documentService.Upload(r.Context(), currentUserID(r), header.Filename, data)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	if result.Warning != "" {
		writeJSON(w, http.StatusOK, UploadResponse{Success: true, Warning: result.Warning, FileID: result.RemoteFileID})
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		File:    toFileResponse(result.File, nil),
	})
}

// DeleteFileHandler removes a file from every bot, the provider and the database
func (h *FileHandlers) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := fileRequest(w, r)
	if !ok {
		return
	}

	if err := h.documentService.Delete(r.Context(), currentUserID(r), req.FileID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetAssociationsHandler returns the bots a file is linked to
func (h *FileHandlers) GetAssociationsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := h.documentService.Associations(currentUserID(r), r.URL.Query().Get("fileId"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssociationsResponse{AssociatedBotIDs: ids})
}

// AssociateHandler links a file to bots
func (h *FileHandlers) AssociateHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := fileRequest(w, r)
	if !ok {
		return
	}

	result, err := h.documentService.Associate(r.Context(), currentUserID(r), req.FileID, req.BotIDs)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssociateResponse{
		Success:            true,
		AssociatedBots:     result.AssociatedBots,
		FailedAssociations: result.FailedAssociations,
	})
}

// DisassociateHandler unlinks a file from the given bots, or from all of them
func (h *FileHandlers) DisassociateHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := fileRequest(w, r)
	if !ok {
		return
	}

	result, err := h.documentService.Disassociate(r.Context(), currentUserID(r), req.FileID, req.BotIDs)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DisassociateResponse{
		Success:         true,
		RemovedFromBots: result.RemovedFromBots,
		FailedRemovals:  result.FailedRemovals,
	})
}

// fileRequest reads the JSON body, falling back to the fileId query parameter for bodiless deletes
func fileRequest(w http.ResponseWriter, r *http.Request) (FileRequest, bool) {
	var req FileRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return req, false
		}
	}
	if req.FileID == "" {
		req.FileID = r.URL.Query().Get("fileId")
	}
	if req.FileID == "" {
		sendError(w, http.StatusBadRequest, "File ID is required", CodeValidationFailed, nil)
		return req, false
	}
	return req, true
}
