package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/media/imageproc"
	"devicegalaxy/internal/media/sniffer"
)

const (
	MaxDeviceUploadBytes  = 10 << 20
	MaxProfileUploadBytes = 5 << 20
	MaxUploadsPerRequest  = 5
)

// Upload is one uploaded file after its type has been sniffed.
type Upload struct {
	Filename string
	MIME     string
	Data     []byte
}

// ReadUpload loads a multipart file of at most maxBytes and checks that
// it is a PNG, JPEG or WEBP image.
func ReadUpload(header *multipart.FileHeader, maxBytes int64) (Upload, error) {
	if header == nil {
		return Upload{}, apperr.InvalidInput("invalid file payload")
	}
	if header.Size > maxBytes {
		return Upload{}, apperr.InvalidInputf("%s exceeds the %d MB limit", header.Filename, maxBytes>>20)
	}

	file, err := header.Open()
	if err != nil {
		return Upload{}, apperr.InvalidInput("invalid file payload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, apperr.InvalidInputf("%s exceeds the %d MB limit", header.Filename, maxBytes>>20)
	}

	return SniffUpload(header.Filename, sniffer.MimeTypeFromHTTP(http.Header(header.Header)), data)
}

// SniffUpload validates raw upload bytes. A declared image type that
// disagrees with the content is rejected.
func SniffUpload(filename, declared string, data []byte) (Upload, error) {
	if len(data) == 0 {
		return Upload{}, apperr.InvalidInputf("%s is empty", filename)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectImage(head)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnsupportedType) || errors.Is(err, sniffer.ErrUnknownType) {
			return Upload{}, apperr.InvalidInputf("%s: only PNG, JPEG and WEBP images are accepted", filename)
		}
		return Upload{}, err
	}

	if declared = normalizeMIME(declared); strings.HasPrefix(declared, "image/") && declared != result.MIME {
		return Upload{}, apperr.InvalidInputf("%s: content type mismatch, declared %s, actual %s", filename, declared, result.MIME)
	}

	return Upload{Filename: filename, MIME: result.MIME, Data: data}, nil
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(mime)
	if mime == "image/jpg" || mime == "image/pjpeg" {
		return "image/jpeg"
	}
	return mime
}

// processDevicePhotos decodes every upload before any write happens, so
// an undecodable file fails the request without side effects.
func processDevicePhotos(uploads []Upload) ([]imageproc.Processed, error) {
	out := make([]imageproc.Processed, 0, len(uploads))
	for _, upload := range uploads {
		processed, err := imageproc.DevicePhoto(upload.Data)
		if errors.Is(err, imageproc.ErrDecode) {
			return nil, apperr.InvalidInputf("%s could not be decoded", upload.Filename)
		}
		if err != nil {
			return nil, internal("process image", err)
		}
		out = append(out, processed)
	}
	return out, nil
}
