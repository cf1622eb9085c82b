package handlers

import (
	"errors"
	"net/http"

	"proof_of_heat"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// statusCodeFor maps the error taxonomy to HTTP status codes.
// DeviceBusy is retryable, hence 503; driver-level failures surface as
// bad gateway since the device, not this service, failed.
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, proof_of_heat.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, proof_of_heat.ErrInvalidMode), errors.Is(err, proof_of_heat.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, proof_of_heat.ErrDeviceBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, proof_of_heat.ErrDeviceUnreachable),
		errors.Is(err, proof_of_heat.ErrDeviceProtocol),
		errors.Is(err, proof_of_heat.ErrDeviceRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondCommandResult writes the updated state or the mapped error.
func (h *Handler) respondCommandResult(c *gin.Context, logKey string, st proof_of_heat.DeviceState, err error) {
	if err != nil {
		if h.log != nil {
			h.log.Errorw(logKey, "device", c.Param("id"), "err", err)
		}
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "state": st})
}

// Request DTO for setting mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // comfort | eco | off
}

// Request DTO for setting the target temperature.
type targetTemperatureRequest struct {
	Celsius float64 `json:"celsius" binding:"required"`
}

// Request DTO for setting the power limit.
type powerLimitRequest struct {
	Watts float64 `json:"watts" binding:"required"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List registered devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	devices := h.services.Monitoring.Devices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Latest snapshot of one device
// @Description  Returns the most recent published state. Never blocks on an in-flight poll; "stale" marks a failed last poll.
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Device id"
// @Success      200  {object}  service.DeviceStatus
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id}/status [get]
func (h *Handler) deviceStatus(c *gin.Context) {
	st, err := h.services.Monitoring.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Latest snapshots of all devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Router       /api/v1/status [get]
func (h *Handler) statusAll(c *gin.Context) {
	statuses := h.services.Monitoring.StatusAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(statuses),
		"devices": statuses,
	})
}

// @Summary      Set operating mode
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string       true  "Device id"
// @Param        body  body  modeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/devices/{id}/mode [post]
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Control.SetMode(c.Request.Context(), c.Param("id"), proof_of_heat.Mode(req.Mode))
	h.respondCommandResult(c, "set_mode_failed", st, err)
}

// @Summary      Set target temperature
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "Device id"
// @Param        body  body  targetTemperatureRequest  true  "Target payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/devices/{id}/target-temperature [post]
func (h *Handler) setTargetTemperature(c *gin.Context) {
	var req targetTemperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Control.SetTargetTemperature(c.Request.Context(), c.Param("id"), req.Celsius)
	h.respondCommandResult(c, "set_target_temperature_failed", st, err)
}

// @Summary      Start device
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Device id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/start [post]
func (h *Handler) startDevice(c *gin.Context) {
	st, err := h.services.Control.Start(c.Request.Context(), c.Param("id"))
	h.respondCommandResult(c, "start_failed", st, err)
}

// @Summary      Stop device
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Device id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/stop [post]
func (h *Handler) stopDevice(c *gin.Context) {
	st, err := h.services.Control.Stop(c.Request.Context(), c.Param("id"))
	h.respondCommandResult(c, "stop_failed", st, err)
}

// @Summary      Set power limit
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Device id"
// @Param        body  body  powerLimitRequest  true  "Power limit payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/devices/{id}/power-limit [post]
func (h *Handler) setPowerLimit(c *gin.Context) {
	var req powerLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Control.SetPowerLimit(c.Request.Context(), c.Param("id"), req.Watts)
	h.respondCommandResult(c, "set_power_limit_failed", st, err)
}
