package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratdesk/internal/artifact"
	"stratdesk/internal/skills"
)

func newTestServer(t *testing.T) (*httptest.Server, *artifact.Store, *skills.Registry) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg, err := skills.NewRegistry(t.TempDir())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandlers(store, reg, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store, reg
}

func TestDownloadArtifact(t *testing.T) {
	srv, store, _ := newTestServer(t)

	meta, err := store.Create(artifact.TypeSpreadsheet, "Report", []byte("xlsx-bytes"))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/artifacts/" + meta.ID + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), meta.ID+".xlsx")

	var body strings.Builder
	_, err = io.Copy(&body, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "xlsx-bytes", body.String())
}

func TestDownloadMissingArtifact(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/artifacts/nope/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAndDeleteArtifacts(t *testing.T) {
	srv, store, _ := newTestServer(t)
	meta, err := store.Create(artifact.TypePresentation, "Deck", []byte("pptx"))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listBody struct {
		Artifacts []artifact.Metadata `json:"artifacts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	require.Len(t, listBody.Artifacts, 1)
	assert.Equal(t, meta.ID, listBody.Artifacts[0].ID)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/artifacts/"+meta.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)
}

func TestSkillCRUDOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	create := `{"name":"writer","content":"---\nname: writer\ntitle: Writer\n---\n\nbody\n"}`
	resp, err := http.Post(srv.URL+"/skills", "application/json", strings.NewReader(create))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/skills/writer")
	require.NoError(t, err)
	var skill skills.Skill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&skill))
	resp.Body.Close()
	assert.Equal(t, "Writer", skill.Meta.Title)

	update := `{"content":"---\nname: writer\ntitle: Writer v2\n---\n\nbody\n"}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/skills/writer", strings.NewReader(update))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, putResp.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/skills/writer", nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	resp, err = http.Get(srv.URL + "/skills/writer")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// A skill named after the detection route would be unreachable over HTTP,
// so the registry rejects it at creation time.
func TestReservedSkillNameRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	create := `{"name":"detect","content":"---\nname: detect\n---\n\nbody\n"}`
	resp, err := http.Post(srv.URL+"/skills", "application/json", strings.NewReader(create))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDetectEndpoint(t *testing.T) {
	srv, _, reg := newTestServer(t)
	require.NoError(t, reg.EnsureSeeds())

	resp, err := http.Post(srv.URL+"/skills/detect", "application/json",
		strings.NewReader(`{"text":"please export to excel"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Matches []skills.Summary `json:"matches"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "spreadsheet", body.Matches[0].Name)
}
