package extract

import (
	"bytes"
	"path/filepath"
	"strings"
)

type FileType string

const (
	TypePDF     FileType = "pdf"
	TypeXLS     FileType = "xls"
	TypeXLSX    FileType = "xlsx"
	TypeXML     FileType = "xml"
	TypeCSV     FileType = "csv"
	TypeText    FileType = "txt"
	TypeImage   FileType = "image"
	TypeZIP     FileType = "zip"
	TypeRAR     FileType = "rar"
	TypeUnknown FileType = ""
)

// DetectType classifies an attachment by content first and file extension
// second. Mail clients lie about extensions often enough that the magic
// bytes win when the two disagree.
func DetectType(filename string, data []byte) FileType {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return TypePDF
	case bytes.HasPrefix(data, []byte("Rar!")):
		return TypeRAR
	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		return TypeXLS
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// xlsx is a zip container, only the extension tells them apart.
		if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
			return TypeXLSX
		}
		return TypeZIP
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}),
		bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return TypeImage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePDF
	case ".xls":
		return TypeXLS
	case ".xlsx":
		return TypeXLSX
	case ".xml":
		return TypeXML
	case ".csv":
		return TypeCSV
	case ".txt":
		return TypeText
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return TypeImage
	case ".zip":
		return TypeZIP
	case ".rar":
		return TypeRAR
	}
	return TypeUnknown
}

// IsArchive reports whether the type needs extraction before processing.
func (t FileType) IsArchive() bool {
	return t == TypeZIP || t == TypeRAR
}
