package checkout

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/common"
)

const maxFormMemory = 64 << 10

type buyForm struct {
	ProjectID string `validate:"required,max=191"`
}

// Handler exposes the checkout form endpoint.
type Handler struct {
	Svc       *Service
	LoginPath string
	validate  *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, loginPath string) *Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Handler{Svc: svc, LoginPath: loginPath, validate: validator.New()}
}

// Buy handles the checkout form submission. On success the browser is sent to
// the hosted checkout page with 303; API clients asking for JSON get the session instead.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		common.SeeOther(w, r, h.LoginPath)
		return
	}

	if err := parseForm(r); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form data", nil)
		return
	}
	form := buyForm{ProjectID: strings.TrimSpace(r.PostFormValue("projectId"))}
	if err := h.validator().Struct(form); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "projectId inválido", fieldErrors(err))
		return
	}

	res, err := h.Svc.Buy(r.Context(), sess, form.ProjectID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if wantsJSON(r) {
		common.JSON(w, http.StatusOK, map[string]any{"data": res})
		return
	}
	if res.RedirectURL == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.SeeOther(w, r, res.RedirectURL)
}

func (h *Handler) validator() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New()
	}
	return h.validate
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func wantsJSON(r *http.Request) bool {
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name == "ProjectID" {
			name = "projectId"
		}
		out[name] = fe.Tag()
	}
	return out
}
