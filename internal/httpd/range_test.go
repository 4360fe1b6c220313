package httpd

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		want    *rawRange // nil = no range
		wantErr bool
	}{
		{"", nil, false},
		{"lines=1-2", nil, false},
		{"bytes=0-499", &rawRange{0, 499}, false},
		{"bytes=500-", &rawRange{500, -1}, false},
		{"bytes=-500", &rawRange{-1, 500}, false},
		{"bytes=0-0", &rawRange{0, 0}, false},
		{"bytes=0-499,600-699", nil, true}, // multiple ranges are a hard error
		{"bytes=9-5", nil, false},          // start past end
		{"bytes=-0", nil, false},           // final zero bytes
		{"bytes=-", nil, false},
		{"bytes=5-5-", nil, false}, // extra dash
		{"bytes=abc-5", nil, false},
		{"bytes=5-xyz", nil, false},
	}
	for _, tt := range tests {
		got, err := parseRange(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRange(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if (got == nil) != (tt.want == nil) {
			t.Errorf("parseRange(%q) = %+v, want %+v", tt.header, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("parseRange(%q) = %+v, want %+v", tt.header, got, tt.want)
		}
	}
}

func TestTranslateRange(t *testing.T) {
	const size = 1000
	tests := []struct {
		name     string
		raw      *rawRange
		want     *ByteRange
		wantCode int // 0 = no error
	}{
		{"no range", nil, nil, 0},
		{"plain", &rawRange{0, 499}, &ByteRange{0, 499}, 0},
		{"open end", &rawRange{500, -1}, &ByteRange{500, 999}, 0},
		{"end past EOF", &rawRange{500, 5000}, &ByteRange{500, 999}, 0},
		{"start at EOF", &rawRange{1000, -1}, nil, 416},
		{"start past EOF", &rawRange{5000, 5999}, nil, 416},
		{"suffix", &rawRange{-1, 200}, &ByteRange{800, 999}, 0},
		{"suffix longer than file", &rawRange{-1, 5000}, &ByteRange{0, 999}, 0},
		{"both missing", &rawRange{-1, -1}, nil, 500},
	}
	for _, tt := range tests {
		got, err := translateRange(tt.raw, size)
		if tt.wantCode != 0 {
			httpErr, ok := err.(*Error)
			if !ok || httpErr.Code != tt.wantCode {
				t.Errorf("%s: error = %v, want code %d", tt.name, err, tt.wantCode)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("%s: = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestTranslateRangeEmptyFile(t *testing.T) {
	got, err := translateRange(&rawRange{0, 10}, 0)
	if err != nil || got != nil {
		t.Errorf("ranges against an empty file should be ignored, got %+v, %v", got, err)
	}
}
