package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/authsvc/pkg/authendpoint"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
	"github.com/ichigozero/ondemand/authsvc/pkg/authtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeConsul struct {
	entry *api.ServiceEntry
	done  chan struct{}
}

func (f *fakeConsul) Register(*api.AgentServiceRegistration) error { return nil }
func (f *fakeConsul) Deregister(*api.AgentServiceRegistration) error { return nil }

func (f *fakeConsul) Service(_, _ string, _ bool, q *api.QueryOptions) ([]*api.ServiceEntry, *api.QueryMeta, error) {
	if q != nil && q.WaitIndex > 0 {
		<-f.done
		return nil, nil, errors.New("consul stopped")
	}
	return []*api.ServiceEntry{f.entry}, &api.QueryMeta{LastIndex: 1}, nil
}

func TestDiscoveredLogin(t *testing.T) {
	logger := log.NewNopLogger()
	store, err := authsvc.NewCredentialStore(map[string]string{"qa": "123"}, bcrypt.MinCost)
	require.NoError(t, err)

	srv := httptest.NewServer(authtransport.NewHTTPHandler(
		authendpoint.New(authservice.New(store, "tok", logger), logger),
		logger,
	))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	consul := &fakeConsul{
		entry: &api.ServiceEntry{
			Node:    &api.Node{Address: host},
			Service: &api.AgentService{Service: "ondemand", Address: host, Port: p},
		},
		done: make(chan struct{}),
	}
	defer close(consul.done)

	endpoints, err := New(consul, "ondemand", logger, 3, time.Second)
	require.NoError(t, err)

	token, err := endpoints.Login(context.Background(), "qa", "123")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = endpoints.Login(context.Background(), "qa", "nope")
	assert.ErrorIs(t, err, authsvc.ErrInvalidCredentials)
}
