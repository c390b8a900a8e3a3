package matcher

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/softwired/margo/parser"
)

// sciencesCorpus mirrors the scientific-computing signatures the engine
// was built against: Wolfram notebooks with annotations inherited through
// use, and the MATLAB mat-file tree with nested endianness branches.
const sciencesCorpus = `
# Wolfram

0	name	wolfram-mathematica-meta
>0	default	x
!:mime	application/vnd.wolfram.mathematica
!:ext	mb

0	string	\064\024\012\000\035\000\000\000	Mathematica notebook version 2.x
>0	use	wolfram-mathematica-meta

0	string	(***********************	Mathematica 3.0 notebook

# MATLAB

0	string	MATLAB	Matlab v
>7	string	5	\bersion 5 mat-file
>>126	beshort	0x4d49	little endian
>>>124	leshort	x	\b, version %d
>>126	beshort	0x494d	big endian
>>>124	beshort	x	\b, version %d
>7	default	x
>>7	string	x	\bersion %.3s mat-file
`

func compileCorpus(t *testing.T, corpus string) *Rules {
	t.Helper()
	rs, err := parser.New().Parse(corpus)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, err := Compile(rs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return r
}

func matlabBuffer(versionAt7 string, tag []byte, version []byte) []byte {
	buf := make([]byte, 128)
	copy(buf, "MATLAB "+versionAt7+" MAT-file")
	copy(buf[124:], version)
	copy(buf[126:], tag)
	return buf
}

func TestMathematicaV2Notebook(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	buf := []byte{0x34, 0x14, 0x0a, 0x00, 0x1d, 0x00, 0x00, 0x00}

	res := r.Match(buf)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "Mathematica notebook version 2.x" {
		t.Errorf("description: got %q", res.Description)
	}
	if res.Mime != "application/vnd.wolfram.mathematica" {
		t.Errorf("mime not inherited through use: got %q", res.Mime)
	}
	if !reflect.DeepEqual(res.Extensions, []string{"mb"}) {
		t.Errorf("extensions not inherited through use: got %v", res.Extensions)
	}
}

func TestMathematica3Notebook(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	buf := []byte("(***********************")

	res := r.Match(buf)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "Mathematica 3.0 notebook" {
		t.Errorf("description: got %q", res.Description)
	}
	if res.Mime != "" || len(res.Extensions) != 0 {
		t.Errorf("expected no annotations, got mime %q ext %v", res.Mime, res.Extensions)
	}
}

func TestMatlabV5Endianness(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)

	tests := []struct {
		name string
		buf  []byte
		want string
	}{
		{
			"little endian",
			matlabBuffer("5.0", []byte("MI"), []byte{0x00, 0x01}),
			"Matlab version 5 mat-file little endian, version 256",
		},
		{
			"big endian",
			matlabBuffer("5.0", []byte("IM"), []byte{0x01, 0x00}),
			"Matlab version 5 mat-file big endian, version 256",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Match(tt.buf)
			if res == nil {
				t.Fatal("expected a match")
			}
			if res.Description != tt.want {
				t.Errorf("description: got %q, expected %q", res.Description, tt.want)
			}
		})
	}
}

func TestMatlabDefaultBranch(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	buf := matlabBuffer("7.3", []byte("MI"), []byte{0x00, 0x01})

	res := r.Match(buf)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "Matlab version 7.3 mat-file" {
		t.Errorf("description: got %q", res.Description)
	}
}

func TestNoMatch(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	if res := r.Match([]byte("nothing recognizable here")); res != nil {
		t.Errorf("expected no match, got %q", res.Description)
	}
	if res := r.Match(nil); res != nil {
		t.Errorf("expected no match on empty buffer, got %q", res.Description)
	}
}

func TestNamedRulesNeverMatchDirectly(t *testing.T) {
	r := compileCorpus(t, `
0	name	always
>0	default	x	should not surface
`)
	if res := r.Match([]byte("anything")); res != nil {
		t.Errorf("named rule matched on its own: %q", res.Description)
	}
}

func TestDeterminism(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	buf := matlabBuffer("5.0", []byte("MI"), []byte{0x00, 0x01})

	first := r.Match(buf)
	for i := 0; i < 5; i++ {
		if got := r.Match(buf); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestUseCycleTerminates(t *testing.T) {
	r := compileCorpus(t, `
0	name	ouroboros
>0	use	ouroboros

0	use	ouroboros	cyclic
`)
	// Must terminate; a bounded-depth result is acceptable, looping is not.
	res := r.Match([]byte{0x00, 0x01, 0x02, 0x03})
	if res != nil && res.Description != "cyclic" {
		t.Errorf("unexpected description %q", res.Description)
	}
}

func TestMutualUseCycleTerminates(t *testing.T) {
	r := compileCorpus(t, `
0	name	ping
>0	use	pong

0	name	pong
>0	use	ping

0	use	ping	bounded
`)
	r.Match(make([]byte, 64))
}

func TestStrengthTieBreak(t *testing.T) {
	r := compileCorpus(t, `
0	string	TIE	first interpretation
0	string	TIE	second interpretation
`)
	res := r.Match([]byte("TIEBREAK"))
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "first interpretation" {
		t.Errorf("tie should keep corpus order, got %q", res.Description)
	}
}

func TestStrengthAnnotationOverridesOrder(t *testing.T) {
	r := compileCorpus(t, `
0	string	AB	generic label
0	string	AB	boosted label
!:strength	+50
`)
	res := r.Match([]byte("ABCD"))
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "boosted label" {
		t.Errorf("expected boosted rule to win, got %q", res.Description)
	}
}

func TestLongerLiteralWinsByStrength(t *testing.T) {
	r := compileCorpus(t, `
0	string	PK	Zip-like archive
0	string	PK\003\004	Zip archive data
`)
	res := r.Match([]byte{'P', 'K', 3, 4, 0, 0})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "Zip archive data" {
		t.Errorf("expected the longer literal to win, got %q", res.Description)
	}
}

func TestMatchAllOrdering(t *testing.T) {
	r := compileCorpus(t, `
0	string	PK	Zip-like archive
0	string	PK\003\004	Zip archive data
`)
	all := r.MatchAll([]byte{'P', 'K', 3, 4})
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
	if all[0].Description != "Zip archive data" {
		t.Errorf("expected strongest first, got %q", all[0].Description)
	}
	if all[0].Strength <= all[1].Strength {
		t.Errorf("expected descending strengths, got %d then %d", all[0].Strength, all[1].Strength)
	}
}

func TestFirstMatchingChildWins(t *testing.T) {
	r := compileCorpus(t, `
0	string	HD	header
>2	byte	x	first
>2	byte	x	second
`)
	res := r.Match([]byte{'H', 'D', 9})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "header first" {
		t.Errorf("expected first sibling to win, got %q", res.Description)
	}
}

func TestFailedChildKeepsParentMatch(t *testing.T) {
	r := compileCorpus(t, `
0	string	HD	header
>100	byte	5	unreachable
`)
	res := r.Match([]byte("HD"))
	if res == nil {
		t.Fatal("expected parent match to stand")
	}
	if res.Description != "header" {
		t.Errorf("got %q", res.Description)
	}
}

func TestRelativeOffsetChild(t *testing.T) {
	r := compileCorpus(t, `
0	string	AB	head
>&0	string	CD	\b-tail
`)
	res := r.Match([]byte("ABCD"))
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "head-tail" {
		t.Errorf("got %q", res.Description)
	}
}

func TestIndirectOffsetLookup(t *testing.T) {
	// Offset 1 holds 0x03; the indirect expression adds 1, landing on 'X'.
	r := compileCorpus(t, "(1.b+1)\tstring\tX\tindirect marker")
	res := r.Match([]byte{0x00, 0x03, 0x00, 0x00, 'X'})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "indirect marker" {
		t.Errorf("got %q", res.Description)
	}
}

func TestUseEndianFlip(t *testing.T) {
	r := compileCorpus(t, `
0	name	chunk-id
>0	beshort	x	id %d

4	string	FLIP	flipped
>8	use	\^chunk-id
`)
	// beshort under a flipped use reads little-endian: 0x01 0x00 -> 1.
	buf := []byte{0, 0, 0, 0, 'F', 'L', 'I', 'P', 0x01, 0x00}
	res := r.Match(buf)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "flipped id 1" {
		t.Errorf("got %q", res.Description)
	}
}

func TestSearchWindow(t *testing.T) {
	r := compileCorpus(t, "0\tsearch/16\tneedle\tfound %s")

	res := r.Match([]byte("xxxxxneedle rest"))
	if res == nil {
		t.Fatal("expected a match inside the window")
	}
	if res.Description != "found needle" {
		t.Errorf("got %q", res.Description)
	}

	far := append(bytes.Repeat([]byte{'x'}, 40), []byte("needle")...)
	if res := r.Match(far); res != nil {
		t.Errorf("match beyond the window: %q", res.Description)
	}
}

func TestOversizedWindowsClamped(t *testing.T) {
	r := compileCorpus(t, "0\tregex/9223372036854775000l\tB\tsecond byte")
	if res := r.Match([]byte("AB")); res == nil {
		t.Fatal("expected a match under a clamped line window")
	}

	r = compileCorpus(t, `
0	string	A	a
>1	regex/9223372036854775807	B	b
`)
	res := r.Match([]byte("AB"))
	if res == nil || res.Description != "a b" {
		t.Fatalf("expected a nested match at offset 1, got %+v", res)
	}

	r = compileCorpus(t, "0\tsearch/9223372036854775000\tneedle\tfound %s")
	res = r.Match([]byte("xx needle"))
	if res == nil || res.Description != "found needle" {
		t.Fatalf("expected the needle inside the clamped window, got %+v", res)
	}
}

func TestHexPlaceholderOnSignedType(t *testing.T) {
	r := compileCorpus(t, "0\tleshort\tx\ttag %x")
	res := r.Match([]byte{0xfe, 0xff})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "tag fffe" {
		t.Errorf("expected %q, got %q", "tag fffe", res.Description)
	}
}

func TestUseMessageLiteralPercent(t *testing.T) {
	r := compileCorpus(t, `
0	name	meta
>0	default	x

0	use	meta	100%% done
`)
	res := r.Match([]byte{0x00})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "100% done" {
		t.Errorf("expected %q, got %q", "100% done", res.Description)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	r := compileCorpus(t, "0\tsearch/cC/32\tmagic\tspotted")
	if res := r.Match([]byte("xx MaGiC xx")); res == nil {
		t.Fatal("expected a case-insensitive match")
	}
}

func TestRegexMatch(t *testing.T) {
	r := compileCorpus(t, "0\tregex\t^#!\\ ?/bin/sh\tPOSIX shell script")
	if res := r.Match([]byte("#! /bin/sh\necho hi\n")); res == nil {
		t.Fatal("expected a regex match")
	}
	if res := r.Match([]byte("#!/usr/bin/env python\n")); res != nil {
		t.Errorf("unexpected match: %q", res.Description)
	}
}

func TestPString(t *testing.T) {
	r := compileCorpus(t, "0\tpstring\thello\tpascal greeting")
	buf := append([]byte{5}, []byte("hello rest")...)
	res := r.Match(buf)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "pascal greeting" {
		t.Errorf("got %q", res.Description)
	}
	if res := r.Match(append([]byte{4}, []byte("hell")...)); res != nil {
		t.Errorf("short payload matched: %q", res.Description)
	}
}

func TestIntegerTransform(t *testing.T) {
	r := compileCorpus(t, "0\tubyte/2\t3\thalved %u")
	res := r.Match([]byte{6})
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Description != "halved 3" {
		t.Errorf("got %q", res.Description)
	}
}

func TestCompileRejectsBadRegex(t *testing.T) {
	rs, err := parser.New().Parse("0\tregex\t(\tunclosed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Compile(rs); err == nil {
		t.Fatal("expected a compile error for an invalid regex")
	}
}

func TestStats(t *testing.T) {
	r := compileCorpus(t, sciencesCorpus)
	rules, named := r.Stats()
	if rules != 4 {
		t.Errorf("expected 4 rules, got %d", rules)
	}
	if named != 1 {
		t.Errorf("expected 1 named rule, got %d", named)
	}
}
