package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository/memory"
	"github.com/jwalitptl/carelink-api/internal/service/consultation"
	"github.com/jwalitptl/carelink-api/internal/service/notification"
	"github.com/jwalitptl/carelink-api/internal/service/provider"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/event"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/security"
	"github.com/jwalitptl/carelink-api/pkg/storage"
	"github.com/jwalitptl/carelink-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterGin(); err != nil {
		panic(err)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(_ context.Context, _ notification.NotifyInput) (*model.Notification, error) {
	return &model.Notification{ID: uuid.New()}, nil
}

type fixture struct {
	store  *memory.Store
	root   string
	jwt    auth.JWTService
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	blobs, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	store := memory.NewStore()
	providers := provider.NewService(store.Providers(), store.Registrar(), blobs,
		security.NewBcryptHasher(4), nopNotifier{}, logger.Nop())
	consultations := consultation.NewService(store.Consultations(), store.Providers(), store.Patients(),
		nopNotifier{}, event.NewService(store.Outbox(), logger.Nop()), logger.Nop())

	f := &fixture{
		store: store,
		root:  root,
		jwt:   auth.NewJWTService("test-secret", time.Hour),
	}
	f.router = gin.New()
	NewHandler(providers, consultations, middleware.NewAuthMiddleware(f.jwt)).
		RegisterRoutes(f.router.Group("/api/clinic"))
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (f *fixture) asProvider(t *testing.T, req *http.Request, id uuid.UUID) *http.Request {
	t.Helper()
	token, err := f.jwt.GenerateToken(auth.Claims{ID: id.String(), Role: int(model.RoleProvider), EntityType: "clinic"})
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func registerForm(t *testing.T, fields map[string]string, withLicense bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withLicense {
		part, err := mw.CreateFormFile("licenseProof", "license.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/clinic/register", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func clinicFields(email string) map[string]string {
	return map[string]string{
		"name":             "Apollo Clinic",
		"email":            email,
		"phone":            "9876543210",
		"address":          "12 MG Road",
		"location":         "Pune",
		"password":         "Secret#123",
		"specializations":  "cardiology, ent",
		"numberOfDoctors":  "4",
		"acceptsEMI":       "yes",
		"acceptsInsurance": "no",
	}
}

func TestRegisterClinicWithLicense(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, registerForm(t, clinicFields("apollo@example.com"), true))

	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, true, data["acceptsEMI"])
	assert.Equal(t, false, data["acceptsInsurance"])
	assert.Equal(t, []interface{}{"cardiology", "ent"}, data["specializations"])

	license := data["licenseProof"].(string)
	assert.Regexp(t, `^/clinicUploads/licenseProof-\d+-\d+\.png$`, license)
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(license[1:])))
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmailIsBadRequest(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, registerForm(t, clinicFields("apollo@example.com"), false))
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := f.do(t, registerForm(t, clinicFields("apollo@example.com"), false))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", resp.Message)
}

func TestRegisterRejectsBadYesNo(t *testing.T) {
	f := newFixture(t)
	fields := clinicFields("apollo@example.com")
	fields["acceptsEMI"] = "maybe"

	w, resp := f.do(t, registerForm(t, fields, false))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "acceptsEMI must be 'yes' or 'no'", resp.Message)
}

func TestRegisterLab(t *testing.T) {
	f := newFixture(t)
	fields := clinicFields("labs@example.com")
	fields["entityType"] = "lab"
	delete(fields, "numberOfDoctors")

	w, resp := f.do(t, registerForm(t, fields, false))

	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	assert.Equal(t, "Lab registered successfully. Awaiting admin approval.", resp.Message)
}

func TestApprovedClinicsHidesPending(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, registerForm(t, clinicFields("apollo@example.com"), false))
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := f.do(t, httptest.NewRequest(http.MethodGet, "/api/clinic/approved-clinics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Empty(t, data["clinics"])
}

func TestMyPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clinicID := uuid.New()
	require.NoError(t, f.store.Registrar().RegisterProvider(ctx, &model.Provider{
		Base:       model.Base{ID: clinicID},
		EntityType: model.EntityClinic,
		Name:       "Apollo Clinic",
		Email:      "apollo@example.com",
		Status:     model.ProviderStatusApproved,
	}))
	for _, status := range []model.ConsultationStatus{model.ConsultationStatusApproved, model.ConsultationStatusPending} {
		require.NoError(t, f.store.Consultations().Create(ctx, &model.Consultation{
			Base:             model.Base{ID: uuid.New(), CreatedAt: time.Now()},
			FullName:         "Asha",
			PhoneNumber:      "9876543210",
			ConsultationTime: "tomorrow",
			Purpose:          "fever",
			ServiceID:        clinicID,
			ServiceType:      model.ServiceTypeClinic,
			Status:           status,
		}))
	}

	req := f.asProvider(t, httptest.NewRequest(http.MethodGet, "/api/clinic/my-patients", nil), clinicID)
	w, resp := f.do(t, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)
}

func TestMyPatientsRequiresProvider(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/clinic/my-patients", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPatientDetailsUnlinkedPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := &model.Patient{
		Base:  model.Base{ID: uuid.New()},
		Name:  "Asha",
		Phone: "9876543210",
		Email: "asha@example.com",
	}
	require.NoError(t, f.store.Registrar().RegisterPatient(ctx, patient))

	req := f.asProvider(t, httptest.NewRequest(http.MethodGet, "/api/clinic/patient-details/"+patient.ID.String(), nil), uuid.New())
	w, _ := f.do(t, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatientDetailsInvalidID(t *testing.T) {
	f := newFixture(t)

	req := f.asProvider(t, httptest.NewRequest(http.MethodGet, "/api/clinic/patient-details/abc", nil), uuid.New())
	w, resp := f.do(t, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid patient ID", resp.Message)
}
