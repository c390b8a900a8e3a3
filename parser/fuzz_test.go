package parser

import "testing"

func FuzzParse(f *testing.F) {
	seeds := []string{
		"0\tstring\tMZ\tDOS executable",
		"0\tstring\tMATLAB\tMatlab v\n>7\tstring\t5\tersion 5 mat-file\n>>126\tbeshort\t0x4d49\tlittle endian",
		"0\tname\tmeta\n>0\tdefault\tx\n!:mime\tapplication/octet-stream\n!:ext\tbin",
		"0\tuse\tmeta\n\n0\tname\tmeta\n>0\tdefault\tx",
		"(0x3c.l)\tstring\tPE\\0\\0\tPE executable",
		"&2\tleshort\t>0\tsection count %d",
		"0\tsearch/4096\t%PDF-\tPDF document",
		"0\tregex/c\t^[a-z]+script\tscript text",
		"0\tpstring/HJ\tabc\tpascal",
		"0\tlelong&0x8080ffff\t0x00000007\tmasked",
		"!:strength\t*3",
		"0\tbyte\t~0x80\tcomplemented",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		p := New()
		p.Parse(input) //nolint:errcheck
	})
}
