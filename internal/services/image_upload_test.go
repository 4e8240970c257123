package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/config"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func TestLocalImageStore_Save(t *testing.T) {
	root := t.TempDir()
	store := NewLocalImageStore(config.MediaConfig{Root: root, URLPrefix: "/media/"})
	postID := uuid.New()

	ref, err := store.Save(context.Background(), postID, fileHeader(t, "My Photo.PNG", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "/media/posts/"+postID.String()+"/my-photo.png", ref)

	data, err := os.ReadFile(filepath.Join(root, "posts", postID.String(), "my-photo.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLocalImageStore_RejectsNonImages(t *testing.T) {
	store := NewLocalImageStore(config.MediaConfig{Root: t.TempDir(), URLPrefix: "/media"})

	_, err := store.Save(context.Background(), uuid.New(), fileHeader(t, "notes.png", []byte("just some text")))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestImageKey_SanitisesName(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "posts/"+id.String()+"/image.jpg", imageKey(id, "../../../.jpg"))
	assert.Equal(t, "posts/"+id.String()+"/a-b_c.gif", imageKey(id, "A B_c.gif"))
}

func TestBlogService_StoresUploadedImage(t *testing.T) {
	f := newBlogFixture(t)
	blog := NewBlogService(f.store, NewLocalImageStore(config.MediaConfig{Root: t.TempDir(), URLPrefix: "/media"}))

	post, err := blog.CreatePost(context.Background(), f.alice.Author, PostInput{
		Title: "With image", Content: "x", ImageFile: fileHeader(t, "cover.png", pngHeader),
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/posts/"+post.ID.String()+"/cover.png", post.Image)

	_, err = blog.UpdatePost(context.Background(), f.alice, post.Slug, PostInput{
		Title: "With image", Content: "y", ImageFile: fileHeader(t, "bad.png", []byte("plain")),
	})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrNotImage.Error(), fe["image"])

	kept, err := blog.GetPost(context.Background(), post.Slug)
	require.NoError(t, err)
	assert.Equal(t, post.Image, kept.Image)
}
