package upload

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/yoshiniks/nodeAppShop/internal/pathutil"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

type Options struct {
	// MaxMemory is passed to ParseMultipartForm. Larger parts spill to
	// temporary files. Default DefaultMaxMemory.
	MaxMemory int64
	// OnOutcome is called with "accepted" or "rejected".
	OnOutcome func(outcome string)
}

type Handler struct {
	storage   Storage
	maxMemory int64
	onOutcome func(string)
}

func NewHandler(storage Storage, opts Options) (*Handler, error) {
	if storage == nil {
		return nil, xerrors.New("upload: storage is nil")
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = DefaultMaxMemory
	}
	return &Handler{storage: storage, maxMemory: opts.MaxMemory, onOutcome: opts.OnOutcome}, nil
}

// IsMultipart reports whether r declares a multipart/form-data body.
func IsMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// Handle parses a multipart body and stores the image field when it is
// acceptable. The non-file fields are returned so they can join the
// decoded form. Non-multipart requests return a None result and no values.
func (h *Handler) Handle(r *http.Request) (Result, url.Values, error) {
	if !IsMultipart(r) {
		return Result{Kind: None}, nil, nil
	}
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		return Result{}, nil, xerrors.Wrap(err, "upload: parse multipart")
	}
	mf := r.MultipartForm
	// accepted files are copied to storage before this returns
	defer mf.RemoveAll()
	values := url.Values(mf.Value)

	files := mf.File[FieldName]
	if len(files) == 0 {
		return Result{Kind: None}, values, nil
	}
	res, err := h.accept(r.Context(), files[0])
	if err != nil {
		return Result{}, values, err
	}
	if h.onOutcome != nil {
		h.onOutcome(res.Kind.String())
	}
	return res, values, nil
}

func (h *Handler) accept(ctx context.Context, fh *multipart.FileHeader) (Result, error) {
	ct := fh.Header.Get("Content-Type")
	if !Allowed(ct) {
		return Result{Kind: Rejected, Reason: ReasonType}, nil
	}
	base, ok := pathutil.SafeBaseName(fh.Filename)
	if !ok {
		return Result{Kind: Rejected, Reason: ReasonFilename}, nil
	}
	name, err := StoredName(base)
	if err != nil {
		return Result{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return Result{}, xerrors.Wrap(err, "upload: open part")
	}
	defer src.Close()

	p, err := h.storage.Put(ctx, name, mediaType(ct), src, fh.Size)
	if err != nil {
		return Result{}, xerrors.Wrapf(fmt.Errorf("%w: %w", ErrStorage, err), "upload: store %s", name)
	}
	return Result{
		Kind: Accepted,
		File: &File{
			FieldName:    FieldName,
			OriginalName: fh.Filename,
			StoredName:   name,
			Dir:          h.storage.Dir(),
			Path:         p,
			ContentType:  mediaType(ct),
			Size:         fh.Size,
		},
	}, nil
}
