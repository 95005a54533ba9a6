package crypto

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	msg := []byte("hello haze")
	sig, err := Sign(kp.Secret, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := Verify(kp.Address, msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, _ := GenerateKeypair()
	sig, _ := Sign(kp.Secret, []byte("original"))
	ok, err := Verify(kp.Address, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail for tampered message")
	}
}

func TestVerifyMalformedSignatureIsError(t *testing.T) {
	kp, _ := GenerateKeypair()
	_, err := Verify(kp.Address, []byte("msg"), []byte("too-short"))
	if err == nil {
		t.Fatal("expected error for malformed signature")
	}
}

func TestDeriveAddressNonStandardLength(t *testing.T) {
	pub := []byte("not-32-bytes")
	addr := DeriveAddress(pub)
	if addr.IsZero() {
		t.Fatal("expected non-zero derived address")
	}
}
