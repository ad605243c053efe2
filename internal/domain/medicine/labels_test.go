package medicine

import "testing"

func TestLabels_VerifyURL(t *testing.T) {
	l := NewLabels("https://dhanvantari.example/")
	got := l.VerifyURL("0x5FbDB2315678afecb367f032d93F642f64180aa3", "T1-2")
	want := "https://dhanvantari.example/verify?contract=0x5FbDB2315678afecb367f032d93F642f64180aa3&tokenId=T1-2"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestClampSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLabelSize},
		{-5, DefaultLabelSize},
		{10, MinLabelSize},
		{300, 300},
		{5000, MaxLabelSize},
	}
	for _, tt := range tests {
		if got := clampSize(tt.in); got != tt.want {
			t.Errorf("clampSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
