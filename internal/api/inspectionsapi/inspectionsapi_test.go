package inspectionsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/firehall/rigcheck/internal/models"
	"github.com/firehall/rigcheck/internal/release"
	"github.com/firehall/rigcheck/internal/services/inspections"
	"github.com/firehall/rigcheck/internal/tracker"
)

type fakeInspections struct {
	submitErr  error
	resolveErr error

	lastSub     *models.InspectionSubmission
	lastNumber  int
	lastCred    string
	lastHadCred bool
}

func (f *fakeInspections) SubmitInspection(_ context.Context, sub *models.InspectionSubmission) error {
	f.lastSub = sub
	return f.submitErr
}

func (f *fakeInspections) ResolveDefect(ctx context.Context, number int, _, _ string) error {
	f.lastNumber = number
	f.lastCred, f.lastHadCred = tracker.Credential(ctx)
	return f.resolveErr
}

type fakeFleet struct {
	status   map[string]int
	defects  []models.Defect
	lowstock []models.LowStockEntry
	err      error
}

func (f *fakeFleet) Status(context.Context) (map[string]int, error) {
	return f.status, f.err
}

func (f *fakeFleet) Defects(context.Context, string) ([]models.Defect, error) {
	return f.defects, f.err
}

func (f *fakeFleet) LowStock(context.Context) ([]models.LowStockEntry, error) {
	return f.lowstock, f.err
}

func newTestServer(t *testing.T, insp *fakeInspections, fl *fakeFleet) *httptest.Server {
	t.Helper()
	api := New(insp, fl, release.DefaultChecklist(), []byte(`{"openapi":"3.0.0"}`), zerolog.Nop())
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func jsonDecode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

const submissionJSON = `{
  "user": {"name": "Jordan Vega", "rank": "Lt."},
  "apparatus": "Engine 1",
  "items": [{"compartment": "Cab", "item": "Flashlight"}],
  "defects": [{"compartment": "Cab", "item": "Flashlight", "status": "missing"}]
}`

func TestSubmitInspection_NoContent(t *testing.T) {
	insp := &fakeInspections{}
	srv := newTestServer(t, insp, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/inspections", submissionJSON, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotNil(t, insp.lastSub)
	require.Equal(t, "Engine 1", insp.lastSub.Apparatus)
}

func TestSubmitInspection_PartialFailureIs502(t *testing.T) {
	insp := &fakeInspections{submitErr: &inspections.SubmitError{Failed: []string{"Cab: Radio"}}}
	srv := newTestServer(t, insp, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/inspections", submissionJSON, nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body struct {
		Failed []string `json:"failed"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.Equal(t, []string{"Cab: Radio"}, body.Failed)
}

func TestSubmitInspection_LockHeldIs409(t *testing.T) {
	insp := &fakeInspections{submitErr: inspections.ErrSubmitInProgress}
	srv := newTestServer(t, insp, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/inspections", submissionJSON, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitInspection_BadBodyIs400(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/inspections", "{not json", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolveDefect_ForwardsBearerCredential(t *testing.T) {
	insp := &fakeInspections{}
	srv := newTestServer(t, insp, &fakeFleet{})

	h := http.Header{}
	h.Set("Authorization", "Bearer chief-token")
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/defects/42/resolve", `{"note":"restocked","resolvedBy":"Capt. Boone"}`, h)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 42, insp.lastNumber)
	require.True(t, insp.lastHadCred)
	require.Equal(t, "chief-token", insp.lastCred)
}

func TestResolveDefect_UnauthorizedIs401(t *testing.T) {
	insp := &fakeInspections{resolveErr: tracker.ErrUnauthorized}
	srv := newTestServer(t, insp, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/defects/42/resolve", `{}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResolveDefect_BadNumberIs400(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/defects/zero/resolve", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFleetStatus(t *testing.T) {
	fl := &fakeFleet{status: map[string]int{"Engine 1": 2, "Tower 1": 0}}
	srv := newTestServer(t, &fakeInspections{}, fl)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/fleet/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Apparatus map[string]int `json:"apparatus"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.Equal(t, fl.status, body.Apparatus)
}

func TestFleetDefects(t *testing.T) {
	fl := &fakeFleet{defects: []models.Defect{
		{IssueNumber: 7, Apparatus: "Engine 1", Compartment: "Cab", Item: "Flashlight", Status: "missing"},
	}}
	srv := newTestServer(t, &fakeInspections{}, fl)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/fleet/defects?apparatus=Engine+1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Defects []models.Defect `json:"defects"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.Len(t, body.Defects, 1)
	require.Equal(t, 7, body.Defects[0].IssueNumber)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/fleet/defects", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLowStock_EmptyIsArrayNotNull(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/fleet/lowstock", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []models.LowStockEntry `json:"entries"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.NotNil(t, body.Entries)
	require.Empty(t, body.Entries)
}

func TestChecklist(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/checklist", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []release.Item `json:"items"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.Len(t, body.Items, 17)
}

func TestReleaseDecision(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/release-decision",
		`{"items":[{"itemNumber":1,"status":"fail","isSafetyItem":true}]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Decision string `json:"decision"`
	}
	require.NoError(t, jsonDecode(resp, &body))
	require.Equal(t, release.DecisionHold, body.Decision)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/release-decision",
		`{"items":[{"itemNumber":1,"status":"fail","isSafetyItem":false}]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, jsonDecode(resp, &body))
	require.Equal(t, release.DecisionRelease, body.Decision)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/release-decision",
		`{"items":[{"itemNumber":1,"status":"broken"}]}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSwaggerJSON(t *testing.T) {
	srv := newTestServer(t, &fakeInspections{}, &fakeFleet{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/swagger.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
