package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agendazk/agendazk/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid        string    `json:"uid"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	LastActive time.Time `json:"lastActive,omitempty"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// CreateUser godoc
// @Summary Register the calling device
// @Description Register a device as a user. The device id is taken from the body, or from the X-User-Id header when the body omits it.
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 201 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Username already taken"
// @Router /api/user [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Registering user")

	var dto UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}
	if dto.Uid == "" {
		dto.Uid = r.Header.Get("X-User-Id")
	}

	created, err := h.userService.Register(r.Context(), dto.Uid, dto.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	log.Tracef("Registered user: %+v", created)

	rest.WriteJSON(w, http.StatusCreated, userToDTO(created))
}

// CurrentUser godoc
// @Summary Get current user
// @Description Retrieve the user registered for the calling device
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 401 {object} rest.ErrorResponse "Missing X-User-Id header"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/user/current [get]
// @Security XUserId
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Trace("Getting current user")

	currentUser, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, userToDTO(currentUser))
}

// UpdateUser godoc
// @Summary Update current user
// @Description Change the username of the calling device
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 200 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Username already taken"
// @Router /api/user/current [put]
// @Security XUserId
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var dto UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}

	updated, err := h.userService.UpdateUsername(r.Context(), dto.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, userToDTO(updated))
}

// StartSession godoc
// @Summary Start a session
// @Description Record that the calling device is active and return the stored user
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 401 {object} rest.ErrorResponse "Missing X-User-Id header"
// @Router /api/user/current/session [post]
// @Security XUserId
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	touched, err := h.userService.TouchLastActive(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, userToDTO(touched))
}

// IsUsernameAvailable godoc
// @Summary Check username availability
// @Description Check if a username is still free, ignoring case
// @Tags User
// @Produce json
// @Param username query string true "Username to check"
// @Success 200 {object} object{available=bool}
// @Failure 400 {object} rest.ErrorResponse "Invalid username"
// @Router /api/user/name-availability [get]
func (h *Handler) IsUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	available, err := h.userService.IsUsernameAvailable(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidUid):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrUsernameTaken):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, ErrUserNotFound):
		rest.WriteError(w, http.StatusNotFound, "User not found", "")
	case errors.Is(err, ErrNoUser):
		rest.WriteError(w, http.StatusUnauthorized, "Missing X-User-Id header", "")
	default:
		log.Errorf("user request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func userToDTO(u User) UserDTO {
	return UserDTO{
		Uid:        u.Uid,
		Username:   u.Username,
		CreatedAt:  u.CreatedAt,
		LastActive: u.LastActive,
	}
}
