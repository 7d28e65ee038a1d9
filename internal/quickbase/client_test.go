package quickbase

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
)

var testConfig = config.DeployConfig{DBID: "bq1234", Realm: "acme", AppToken: "app-tok", UserToken: "user-tok"}

type capturedRequest struct {
	XMLName   xml.Name `xml:"qdbapi"`
	PageName  string   `xml:"pagename"`
	PageType  int      `xml:"pagetype"`
	PageBody  string   `xml:"pagebody"`
	UserToken string   `xml:"usertoken"`
	AppToken  *string  `xml:"apptoken"`
}

func TestEncodeAddReplaceDBPage(t *testing.T) {
	body, err := EncodeAddReplaceDBPage(testConfig, Page{Name: "D_1_index.html", Body: "<b>&amp;</b>]]]]><![CDATA[>"})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "<qdbapi>")
	assert.Contains(t, s, "<pagename>D_1_index.html</pagename>")
	assert.Contains(t, s, "<pagetype>1</pagetype>")
	assert.Contains(t, s, "<pagebody><![CDATA[<b>&amp;</b>]]]]><![CDATA[>]]></pagebody>")
	assert.Contains(t, s, "<usertoken>user-tok</usertoken>")
	assert.Contains(t, s, "<apptoken>app-tok</apptoken>")

	var got capturedRequest
	require.NoError(t, xml.Unmarshal(body, &got))
	assert.Equal(t, "<b>&amp;</b>]]>", got.PageBody)
}

func TestEncodeAddReplaceDBPage_NoAppToken(t *testing.T) {
	cfg := testConfig
	cfg.AppToken = ""
	body, err := EncodeAddReplaceDBPage(cfg, Page{Name: "p", Body: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "apptoken")
}

func TestClient_URLs(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, "https://acme.quickbase.com/db/bq1234", c.DBURL(testConfig))
	assert.Equal(t, "https://acme.quickbase.com/db/bq1234?a=dbpage&pagename=D_1_index.html", c.PageURL(testConfig, "D_1_index.html"))

	c = NewClient(nil, WithDomain("quickbase.eu"))
	assert.Equal(t, "https://acme.quickbase.eu/db/bq1234", c.DBURL(testConfig))

	c = NewClient(nil, WithBaseURL("http://127.0.0.1:9/"))
	assert.Equal(t, "http://127.0.0.1:9/db/bq1234", c.DBURL(testConfig))
}

func TestClient_AddReplaceDBPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/db/bq1234", r.URL.Path)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, ActionAddReplaceDBPage, r.Header.Get("QUICKBASE-ACTION"))
		assert.Equal(t, "true", r.Header.Get("X_QUICKBASE_RETURN_HTTP_ERROR"))

		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var got capturedRequest
		assert.NoError(t, xml.Unmarshal(data, &got))
		assert.Equal(t, "D_1_app.js", got.PageName)
		assert.Equal(t, PageTypeXSL, got.PageType)
		assert.Equal(t, "user-tok", got.UserToken)

		_, _ = w.Write([]byte(`<?xml version="1.0" ?>
<qdbapi>
   <action>API_AddReplaceDBPage</action>
   <errcode>0</errcode>
   <errtext>No error</errtext>
   <pageID>12</pageID>
   <pagename>D_1_app.js</pagename>
</qdbapi>`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithBaseURL(srv.URL))
	resp, err := c.AddReplaceDBPage(context.Background(), testConfig, Page{Name: "D_1_app.js", Body: "x"})
	require.NoError(t, err)
	assert.False(t, resp.Rejected())
	assert.Equal(t, "12", resp.PageID)
	assert.Equal(t, "D_1_app.js", resp.PageName)
	assert.Equal(t, ActionAddReplaceDBPage, resp.Action)
}

func TestClient_AddReplaceDBPageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<qdbapi><action>API_AddReplaceDBPage</action><errcode>4</errcode><errtext>Bad ticket</errtext></qdbapi>`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithBaseURL(srv.URL))
	resp, err := c.AddReplaceDBPage(context.Background(), testConfig, Page{Name: "D_1_app.js", Body: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Rejected())
	assert.Equal(t, 4, resp.ErrCode)
	assert.Equal(t, "Bad ticket", resp.ErrText)
	assert.Equal(t, "D_1_app.js", resp.PageName)
}

func TestClient_AddReplaceDBPageHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantPage  string
		transient bool
	}{
		{
			name:     "client error names page from body",
			status:   http.StatusBadRequest,
			body:     `<qdbapi><errcode>24</errcode><errtext>Invalid</errtext><pagename>D_1_from_body.js</pagename></qdbapi>`,
			wantPage: "D_1_from_body.js",
		},
		{
			name:      "server error without xml",
			status:    http.StatusBadGateway,
			body:      "bad gateway",
			wantPage:  "D_1_app.js",
			transient: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.Client(), WithBaseURL(srv.URL))
			resp, err := c.AddReplaceDBPage(context.Background(), testConfig, Page{Name: "D_1_app.js", Body: "x"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, errors.ErrUpload)
			assert.Equal(t, tt.transient, errors.IsTransient(err))

			ce, ok := errors.AsClassified(err)
			require.True(t, ok)
			page, _ := ce.Context().GetString("page")
			assert.Equal(t, tt.wantPage, page)
		})
	}
}

func TestClient_AddReplaceDBPageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(nil, WithBaseURL(base))
	_, err := c.AddReplaceDBPage(context.Background(), testConfig, Page{Name: "D_1_app.js", Body: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUpload)
	assert.Equal(t, errors.CategoryNetwork, errors.GetCategory(err))
}

func TestClient_AddReplaceDBPageGarbledResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithBaseURL(srv.URL))
	resp, err := c.AddReplaceDBPage(context.Background(), testConfig, Page{Name: "p", Body: "x"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, errors.ErrUpload)
	assert.Equal(t, errors.CategoryNetwork, errors.GetCategory(err))
	assert.False(t, errors.HasCategory(err, errors.CategoryPlatform))
	assert.Contains(t, err.Error(), "<html>oops")
}
