package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"CapIot.webnode/internal/models"
	"CapIot.webnode/internal/repository"
	"CapIot.webnode/internal/service"
	"CapIot.webnode/internal/utils"
)

// maxBodyBytes matches the body limit devices were built against.
const maxBodyBytes = 100 << 10

// User-facing messages. Dashboards and firmware already match on these.
const (
	msgSaved          = "Datos guardados correctamente"
	msgDeviceRequired = "device_id es requerido"
	msgInvalidJSON    = "JSON inválido"
	msgBodyTooLarge   = "El cuerpo de la petición es demasiado grande"
	msgSaveFailed     = "Error al guardar los datos"
	msgListFailed     = "Error al obtener los datos"
	msgLatestFailed   = "Error al obtener datos"
	msgNoData         = "No hay datos disponibles"
)

// ReadingController handles HTTP requests for sensor readings.
type ReadingController struct {
	service *service.ReadingService
	logger  *slog.Logger
}

// NewReadingController creates a new ReadingController.
func NewReadingController(service *service.ReadingService, logger *slog.Logger) *ReadingController {
	return &ReadingController{
		service: service,
		logger:  logger,
	}
}

// HandleCreateReading accepts one reading from a device.
func (c *ReadingController) HandleCreateReading(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req models.ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondWithError(w, models.NewAPIError(models.ErrorCodePayloadTooLarge, msgBodyTooLarge, http.StatusRequestEntityTooLarge))
			return
		}
		c.logger.Warn("Invalid reading payload", "remote_addr", r.RemoteAddr, "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, msgInvalidJSON, http.StatusBadRequest))
		return
	}

	reading, err := c.service.AcceptReading(r.Context(), req)
	if err != nil {
		c.respondWithServiceError(w, err, msgSaveFailed)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, models.ReadingResponse{
		Success: true,
		Message: msgSaved,
		Data:    reading,
	})
}

// HandleListReadings returns the most recent readings (query: ?limit=N).
func (c *ReadingController) HandleListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := c.service.ListReadings(r.Context(), r.URL.Query().Get("limit"))
	if err != nil {
		c.respondWithServiceError(w, err, msgListFailed)
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}

	utils.RespondWithJSON(w, http.StatusOK, models.ReadingListResponse{
		Success: true,
		Count:   len(readings),
		Data:    readings,
	})
}

// HandleLatestReading returns the newest reading. An empty store is reported
// with success=false and a 200, not as an error.
func (c *ReadingController) HandleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := c.service.LatestReading(r.Context())
	if err != nil {
		c.respondWithServiceError(w, err, msgLatestFailed)
		return
	}
	if reading == nil {
		utils.RespondWithJSON(w, http.StatusOK, models.LatestReadingResponse{Success: false, Message: msgNoData})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.LatestReadingResponse{Success: true, Data: reading})
}

// HandleIndex describes the API.
func (c *ReadingController) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, models.BannerResponse{
		Message: "API IoT ESP32 funcionando!",
		Endpoints: map[string]string{
			"POST /data":       "Recibir datos del ESP32",
			"GET /data":        "Obtener todos los registros (query: ?limit=50)",
			"GET /data/latest": "Obtener último registro",
			"GET /health":      "Estado del almacenamiento",
		},
		Status: "online",
	})
}

// HandleHealth pings the store.
func (c *ReadingController) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := c.service.Ping(r.Context()); err != nil {
		c.logger.Warn("Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "storage unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// respondWithServiceError maps service errors onto the API error envelope.
// Storage details are logged, never returned.
func (c *ReadingController) respondWithServiceError(w http.ResponseWriter, err error, storageMsg string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMissingParameter, msgDeviceRequired, http.StatusBadRequest))
	case errors.Is(err, repository.ErrStoreUnavailable):
		c.logger.Error("Storage unavailable", "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeStorageUnavailable, storageMsg, http.StatusInternalServerError))
	default:
		c.logger.Error("Request failed", "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, storageMsg, http.StatusInternalServerError))
	}
}
