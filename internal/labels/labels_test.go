package labels

import "testing"

func TestNames_FixedOrder(t *testing.T) {
	want := []string{"sadness", "joy", "love", "anger", "fear", "surprise"}
	for i, n := range want {
		if got := Label(i).String(); got != n {
			t.Fatalf("Label(%d) = %q, want %q", i, got, n)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{in: "joy", want: Joy},
		{in: " Surprise ", want: Surprise},
		{in: "3", want: Anger},
		{in: "6", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "boredom", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOutOfRangeString(t *testing.T) {
	if got := Label(9).String(); got != "LABEL_9" {
		t.Fatalf("String() = %q", got)
	}
}

func TestID2LabelAndLabel2ID_Inverse(t *testing.T) {
	id2 := ID2Label()
	l2 := Label2ID()
	if len(id2) != NumLabels || len(l2) != NumLabels {
		t.Fatalf("unexpected map sizes %d %d", len(id2), len(l2))
	}
	if id2["1"] != "joy" || l2["joy"] != 1 {
		t.Fatalf("joy mapping broken: %v %v", id2, l2)
	}
}
