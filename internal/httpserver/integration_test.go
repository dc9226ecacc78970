package httpserver_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/yoshiniks/nodeAppShop/internal/health"
	"github.com/yoshiniks/nodeAppShop/internal/httpserver"
	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/static"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
	"github.com/yoshiniks/nodeAppShop/internal/views"
	"github.com/yoshiniks/nodeAppShop/internal/webassets"
)

var csrfInput = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

type shopClient struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (c *shopClient) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (c *shopClient) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, _ := http.NewRequest("GET", c.base+path, http.NoBody)
	return c.do(req)
}

func (c *shopClient) post(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, _ := http.NewRequest("POST", c.base+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// token fetches path and returns the csrf token of its form.
func (c *shopClient) token(path string) string {
	c.t.Helper()
	_, body := c.get(path)
	m := csrfInput.FindStringSubmatch(body)
	if m == nil {
		c.t.Fatalf("no csrf token on %s", path)
	}
	return m[1]
}

// TestIntegration_FullStack wires httpserver.NewHandler around the real
// storefront pipeline with in-memory stores and walks a visitor from
// signup to a product submission.
func TestIntegration_FullStack(t *testing.T) {
	v, err := views.New()
	if err != nil {
		t.Fatal(err)
	}
	users := user.NewMemoryStore()
	sessStore := session.NewMemoryStore(context.Background(), 0)
	mgr, err := session.NewManager(sessStore, session.Options{Secrets: [][]byte{[]byte("integration-secret-0123456789")}})
	if err != nil {
		t.Fatal(err)
	}
	imagesDir := filepath.Join(t.TempDir(), "images")
	storage, err := upload.NewDiskStorage(imagesDir)
	if err != nil {
		t.Fatal(err)
	}
	uploads, _ := upload.NewHandler(storage, upload.Options{})
	staticSrv, err := static.New(&static.Options{Public: webassets.PublicFS(), Images: storage.FS})
	if err != nil {
		t.Fatal(err)
	}

	var csrfFailures int
	app, err := httpserver.NewApp(&httpserver.AppOptions{
		Static:        staticSrv,
		Uploads:       uploads,
		Sessions:      mgr,
		Users:         users,
		Views:         v,
		OnCSRFFailure: func() { csrfFailures++ },
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	srv := httptest.NewServer(httpserver.NewHandler(&httpserver.Options{
		Logger:       log.Nop(),
		UseRecoverMW: true,
		MaxBodyBytes: 1 << 20,
		Health:       health.Fixed(true, ""),
		App:          app,
	}))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	c := &shopClient{t: t, base: srv.URL, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}

	t.Run("probe bypasses the pipeline", func(t *testing.T) {
		before := sessStore.Len()
		resp, _ := c.get("/-/healthy")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if sessStore.Len() != before {
			t.Fatal("probe created a session")
		}
	})

	t.Run("static assets", func(t *testing.T) {
		resp, body := c.get("/css/main.css")
		if resp.StatusCode != http.StatusOK || body == "" {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get("Set-Cookie") != "" {
			t.Fatal("static response set a cookie")
		}
	})

	t.Run("404 page", func(t *testing.T) {
		resp, body := c.get("/no-such-page")
		if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Page Not Found") {
			t.Fatalf("status = %d body = %q", resp.StatusCode, body)
		}
		if resp.Header.Get("Content-Security-Policy") == "" {
			t.Fatal("security headers missing on 404")
		}
	})

	t.Run("HEAD uses GET routes", func(t *testing.T) {
		req, _ := http.NewRequest("HEAD", srv.URL+"/", http.NoBody)
		resp, _ := c.do(req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("HEAD / status = %d", resp.StatusCode)
		}
		req, _ = http.NewRequest("HEAD", srv.URL+"/no-such-page", http.NoBody)
		if resp, _ := c.do(req); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("HEAD /no-such-page status = %d", resp.StatusCode)
		}
	})

	t.Run("post without token is rejected", func(t *testing.T) {
		resp, body := c.post("/signup", url.Values{"email": {"x@example.com"}})
		if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(body, "Error!") {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if csrfFailures != 1 {
			t.Fatalf("csrf failures = %d, want 1", csrfFailures)
		}
	})

	t.Run("signup then login", func(t *testing.T) {
		tok := c.token("/signup")
		resp, _ := c.post("/signup", url.Values{
			"_csrf":           {tok},
			"email":           {"Max@Example.com"},
			"password":        {"secret1"},
			"confirmPassword": {"secret1"},
		})
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Fatalf("signup: status = %d location = %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		tok = c.token("/login")
		resp, _ = c.post("/login", url.Values{
			"_csrf":    {tok},
			"email":    {"max@example.com"},
			"password": {"secret1"},
		})
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
			t.Fatalf("login: status = %d location = %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		_, body := c.get("/")
		if !strings.Contains(body, "Signed in as max@example.com") {
			t.Fatal("shop page does not show the logged in user")
		}
	})

	t.Run("add product with image", func(t *testing.T) {
		tok := c.token("/admin/add-product")

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("_csrf", tok)
		_ = mw.WriteField("title", "Red Shoe")
		_ = mw.WriteField("price", "19.99")
		_ = mw.WriteField("description", "A very red shoe.")
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="shoe.png"`)
		hdr.Set("Content-Type", "image/png")
		pw, _ := mw.CreatePart(hdr)
		_, _ = io.WriteString(pw, "\x89PNG fake")
		_ = mw.Close()

		req, _ := http.NewRequest("POST", srv.URL+"/admin/add-product", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, _ := c.do(req)
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		entries, _ := os.ReadDir(imagesDir)
		if len(entries) != 1 {
			t.Fatalf("stored %d images, want 1", len(entries))
		}
		resp, body := c.get("/images/" + entries[0].Name())
		if resp.StatusCode != http.StatusOK || body != "\x89PNG fake" {
			t.Fatalf("image: status = %d", resp.StatusCode)
		}
	})

	t.Run("logout", func(t *testing.T) {
		tok := c.token("/")
		resp, _ := c.post("/logout", url.Values{"_csrf": {tok}})
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp, _ = c.get("/admin/add-product")
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Fatalf("after logout: status = %d", resp.StatusCode)
		}
	})
}

func TestNewApp_RequiresCollaborators(t *testing.T) {
	if _, err := httpserver.NewApp(&httpserver.AppOptions{}); err == nil {
		t.Fatal("expected error")
	}
}
