package cloud

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsEncodeOrder(t *testing.T) {
	f := FieldsFromSnapshot(snapshot())
	assert.Equal(t,
		"api_key=KEY&field1=23.5&field2=1&field3=0&field4=12.5&field5=-3.25&field6=7.1",
		f.Encode("KEY"))
}

func TestFieldsEncodeEscapesWriteKey(t *testing.T) {
	body := Fields{}.Encode("a&field1=9 x")
	assert.True(t, strings.HasPrefix(body, "api_key=a%26field1%3D9+x&field1=0&"), body)

	v, err := url.ParseQuery(body)
	require.NoError(t, err)
	assert.Equal(t, "a&field1=9 x", v.Get("api_key"))
	assert.Equal(t, []string{"0"}, v["field1"])
}

func TestThingSpeakClientWrite(t *testing.T) {
	var gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("42"))
	}))
	defer srv.Close()

	c := NewThingSpeakClient(srv.URL+"/", "123", "KEY", time.Second)
	resp, err := c.Write(context.Background(), Fields{1, 0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, Response{Status: http.StatusOK, EntryID: 42}, resp)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "/update", gotPath)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "api_key=KEY&field1=1&field2=0&field3=1&field4=2&field5=3&field6=4", gotBody)
}

func TestThingSpeakClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewThingSpeakClient(srv.URL, "123", "KEY", time.Second)
	resp, err := c.Write(context.Background(), Fields{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.False(t, resp.Accepted())
}

func TestThingSpeakClientRefusedUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0"))
	}))
	defer srv.Close()

	c := NewThingSpeakClient(srv.URL, "123", "KEY", time.Second)
	resp, err := c.Write(context.Background(), Fields{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int64(0), resp.EntryID)
	assert.False(t, resp.Accepted())
}

func TestThingSpeakClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewThingSpeakClient(addr, "123", "KEY", time.Second)
	_, err := c.Write(context.Background(), Fields{})
	assert.Error(t, err)
}

type countingIdle struct{ n int }

func (c *countingIdle) CloseIdleConnections() { c.n++ }

func TestDialLink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	idle := &countingIdle{}
	l := NewDialLink(addr, time.Second, idle)
	assert.True(t, l.Ready())

	require.NoError(t, ln.Close())
	assert.False(t, l.Ready())

	l.Reconnect()
	assert.Equal(t, 1, idle.n)
}
