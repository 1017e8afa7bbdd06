package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFromPublicURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{
			name:   "supabase public url",
			url:    "https://abc.supabase.co/storage/v1/object/public/application-files/123/w2_999.png",
			want:   "123/w2_999.png",
			wantOK: true,
		},
		{
			name:   "escaped segments are decoded",
			url:    "https://abc.supabase.co/storage/v1/object/public/application-files/user%201/w2%20copy_1.png",
			want:   "user 1/w2 copy_1.png",
			wantOK: true,
		},
		{
			name:   "other bucket",
			url:    "https://abc.supabase.co/storage/v1/object/public/avatars/123/me.png",
			wantOK: false,
		},
		{
			name:   "signed url",
			url:    "https://abc.supabase.co/storage/v1/object/sign/application-files/123/w2.png?token=x",
			wantOK: false,
		},
		{
			name:   "not a url",
			url:    "::::",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PathFromPublicURL(tt.url, "application-files")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBuildPublicURLRoundTrips(t *testing.T) {
	u := BuildPublicURL("https://abc.supabase.co/", "application-files", "u1/w2 form_17.jpg")
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/application-files/u1/w2%20form_17.jpg", u)

	p, ok := PathFromPublicURL(u, "application-files")
	require.True(t, ok)
	assert.Equal(t, "u1/w2 form_17.jpg", p)
}

func TestCleanObjectPath(t *testing.T) {
	valid := map[string]string{
		"u1/w2_1.jpg":  "u1/w2_1.jpg",
		"/u1/w2_1.jpg": "u1/w2_1.jpg",
	}
	for in, want := range valid {
		got, err := CleanObjectPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "  ", "../etc/passwd", "u1/../../x", "u1//x", "/"} {
		_, err := CleanObjectPath(in)
		assert.Error(t, err, in)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "application-files", "http://localhost:8080")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "u1/w2_1.pdf", []byte("first"), "application/pdf"))
	require.NoError(t, store.Upload(ctx, "u1/w2_1.pdf", []byte("second"), "application/pdf"))

	data, err := store.Download(ctx, "u1/w2_1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	assert.Equal(t, "http://localhost:8080/storage/v1/object/public/application-files/u1/w2_1.pdf", store.PublicURL("u1/w2_1.pdf"))
}

func TestLocalStoreMissingObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "application-files", "http://localhost:8080")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "u1/nothing.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Download(context.Background(), "../outside")
	assert.Error(t, err)
}
