package extract

import "testing"

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     FileType
	}{
		{"pdf magic", "invoice.bin", []byte("%PDF-1.7 rest"), TypePDF},
		{"rar magic", "bundle.dat", []byte("Rar!\x1a\x07\x01\x00"), TypeRAR},
		{"xls magic", "book.dat", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1}, TypeXLS},
		{"zip magic", "bundle.bin", []byte("PK\x03\x04rest"), TypeZIP},
		{"xlsx is zip plus extension", "book.xlsx", []byte("PK\x03\x04rest"), TypeXLSX},
		{"png magic", "scan.bin", []byte{0x89, 'P', 'N', 'G', 0x0D}, TypeImage},
		{"jpg magic", "scan.bin", []byte{0xFF, 0xD8, 0xFF, 0xE0}, TypeImage},
		{"pdf extension", "invoice.PDF", []byte("no magic here"), TypePDF},
		{"xml extension", "invoice.xml", []byte("<HoaDon/>"), TypeXML},
		{"csv extension", "rows.csv", []byte("a,b,c"), TypeCSV},
		{"unknown", "mystery", []byte("plain"), TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectType(tt.filename, tt.data); got != tt.want {
				t.Errorf("DetectType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestIsArchive(t *testing.T) {
	if !TypeZIP.IsArchive() || !TypeRAR.IsArchive() {
		t.Error("zip and rar are archives")
	}
	if TypePDF.IsArchive() {
		t.Error("pdf is not an archive")
	}
}
