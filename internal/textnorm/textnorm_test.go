package textnorm

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	got := Tokens("Al-Shabaab ATTACK, 12 killed!")
	want := []string{"al", "shabaab", "attack", "12", "killed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTokensEmpty(t *testing.T) {
	if got := Tokens("  ...  "); len(got) != 0 {
		t.Errorf("Expected no tokens, got %v", got)
	}
}

func TestWordsStripsDiacritics(t *testing.T) {
	got := Words("Attaque au SÉNÉGAL: côte")
	want := []string{"attaque", "au", "senegal", "cote"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTokenSetDeduplicates(t *testing.T) {
	set := TokenSet("bomb Bomb BOMB blast")
	if len(set) != 2 {
		t.Errorf("Expected 2 distinct tokens, got %d", len(set))
	}
	if _, ok := set["bomb"]; !ok {
		t.Error("Expected folded token 'bomb' in set")
	}
}
