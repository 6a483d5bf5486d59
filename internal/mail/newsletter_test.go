package mail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

func TestSubscribeHTTP(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &models.Petition{
		NewsletterSettings: models.NewsletterSettings{
			HasNewsletter:                    true,
			NewsletterSubscribeMethod:        models.NewsletterMethodHTTP,
			NewsletterSubscribeHTTPURL:       srv.URL,
			NewsletterSubscribeHTTPMailfield: "EMAIL",
			NewsletterSubscribeHTTPData:      `{"list": "campaign-42"}`,
		},
	}

	sub := NewNewsletterSubscriber()
	require.NoError(t, sub.Subscribe(context.Background(), p, "julia@example.org"))
	assert.Equal(t, "julia@example.org", gotForm["EMAIL"])
	assert.Equal(t, "campaign-42", gotForm["list"])
}

func TestSubscribeHTTP_EndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &models.Petition{
		NewsletterSettings: models.NewsletterSettings{
			HasNewsletter:              true,
			NewsletterSubscribeMethod:  models.NewsletterMethodHTTP,
			NewsletterSubscribeHTTPURL: srv.URL,
		},
	}

	err := NewNewsletterSubscriber().Subscribe(context.Background(), p, "julia@example.org")
	assert.Error(t, err)
}

func TestSubscribe_NewsletterDisabled(t *testing.T) {
	p := &models.Petition{}
	assert.NoError(t, NewNewsletterSubscriber().Subscribe(context.Background(), p, "julia@example.org"))
}

func TestSubscribe_UnknownMethod(t *testing.T) {
	p := &models.Petition{
		NewsletterSettings: models.NewsletterSettings{
			HasNewsletter:             true,
			NewsletterSubscribeMethod: "carrier-pigeon",
		},
	}
	assert.Error(t, NewNewsletterSubscriber().Subscribe(context.Background(), p, "julia@example.org"))
}
