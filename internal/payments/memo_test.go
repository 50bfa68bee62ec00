package payments

import "testing"

func TestParseMemoFromLogs(t *testing.T) {
	logs := []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		`Program log: Memo (len 22): "SNIPE-user42-starter-7f3a"`,
		"Program MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr success",
	}
	memo, err := ParseMemo(logs, "SNIPE")
	if err != nil {
		t.Fatalf("ParseMemo: %v", err)
	}
	if memo.UserID != "user42" || memo.PackID != "starter" || memo.Nonce != "7f3a" {
		t.Errorf("memo = %+v", memo)
	}
}

func TestParseMemoMissing(t *testing.T) {
	logs := []string{"Program log: Instruction: Transfer"}
	if _, err := ParseMemo(logs, "SNIPE"); err == nil {
		t.Fatal("expected error for logs without memo")
	}
}

func TestParseMemoMalformed(t *testing.T) {
	cases := []string{
		`Program log: Memo (len 10): "SNIPE-user42"`,      // too few parts
		`Program log: Memo (len 14): "SNIPE--starter-x"`,  // empty user
		`Program log: Memo (len 20): "SNIPE-u-p-n-extra"`, // too many parts
		`Program log: Memo (len 16): "SNIPE-user42--7f"`,  // empty pack
	}
	for _, line := range cases {
		if _, err := ParseMemo([]string{line}, "SNIPE"); err == nil {
			t.Errorf("no error for %s", line)
		}
	}
}

func TestParseMemoCustomPrefix(t *testing.T) {
	logs := []string{`Program log: Memo (len 14): "PAY-u1-p1-n1"`}
	memo, err := ParseMemo(logs, "PAY")
	if err != nil {
		t.Fatalf("ParseMemo: %v", err)
	}
	if memo.UserID != "u1" {
		t.Errorf("memo = %+v", memo)
	}
}
