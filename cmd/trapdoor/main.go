package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gpv-trapdoor/ibe"
	"gpv-trapdoor/keys"
	"gpv-trapdoor/parallel"
	"gpv-trapdoor/params"
	"gpv-trapdoor/prof"
	"gpv-trapdoor/signature"
)

func usage() {
	fmt.Println(`usage: trapdoor <params|setup|extract|encrypt|decrypt|sign|verify> [options]

Subcommands:
  params   Print the derived widths of a parameter set
           Flags:
             -p <preset|file>   parameter preset name or .json/.yaml file (default: N256Q30)
             -o <file>          also write the parameters to file

  setup    Generate a master key pair and write <dir>/{public,master}.json
           Flags:
             -p <preset|file>   parameters (default: N256Q30)

  extract  Extract the secret key of an identity
           Flags:
             -id <string>       identity (required)
             -o  <file>         output file (default: <dir>/<id>.key.json)

  encrypt  Encrypt a short message to an identity (at most N/8 bytes)
           Flags:
             -id <string>       identity (required)
             -m  <string>       message (required)
             -o  <file>         output file (default: <dir>/ciphertext.json)

  decrypt  Decrypt a ciphertext with an identity key
           Flags:
             -key <file>        identity key file (required)
             -ct  <file>        ciphertext file (default: <dir>/ciphertext.json)

  sign     Sign a message with the master trapdoor
           Flags:
             -m <string>        message (required)
             -o <file>          output file (default: <dir>/signature.json)

  verify   Verify a signature against <dir>/public.json
           Flags:
             -m   <string>      message (required)
             -sig <file>        signature file (default: <dir>/signature.json)

Every subcommand also takes:
  -dir <dir>       key directory (default: trapdoor_keys)
  -threads <int>   worker threads, 0 for all hardware threads
  -timings         print a timing table on exit`)
	os.Exit(1)
}

type common struct {
	dir     *string
	threads *int
	timings *bool
}

func newFlagSet(name string) (*flag.FlagSet, common) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	c := common{
		dir:     fs.String("dir", "trapdoor_keys", "key directory"),
		threads: fs.Int("threads", 0, "worker threads (0 = hardware threads)"),
		timings: fs.Bool("timings", false, "print stage timings"),
	}
	return fs, c
}

func (c common) apply() {
	if *c.threads > 0 {
		parallel.SetThreads(*c.threads)
	}
}

func (c common) done() {
	if *c.timings {
		if err := prof.Report(os.Stdout, false); err != nil {
			log.Printf("timings: %v", err)
		}
	}
}

func (c common) path(name string) string { return filepath.Join(*c.dir, name) }

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "params":
		runParams(args)
	case "setup":
		runSetup(args)
	case "extract":
		runExtract(args)
	case "encrypt":
		runEncrypt(args)
	case "decrypt":
		runDecrypt(args)
	case "sign":
		runSign(args)
	case "verify":
		runVerify(args)
	default:
		usage()
	}
}

func runParams(args []string) {
	fs, c := newFlagSet("params")
	name := fs.String("p", "N256Q30", "preset name or parameter file")
	out := fs.String("o", "", "write parameters to this file")
	fs.Parse(args)
	c.apply()

	p, err := params.Resolve(*name)
	if err != nil {
		log.Fatalf("params: %v", err)
	}
	fmt.Printf("N=%d q=%d base=%d k=%d m=%d\n", p.N(), p.Q(), p.Base(), p.K(), p.M())
	fmt.Printf("sigma=%.4f alpha=%.4f s=%.2f sigma_large=%.2f\n", p.Sigma(), p.Alpha(), p.S(), p.SigmaLarge())
	fmt.Printf("bound_inf=%.0f bound_l2=%.0f threads=%d\n", p.BoundInf(), p.BoundL2(), parallel.Threads())
	if *out != "" {
		if err := params.SaveFile(*out, p); err != nil {
			log.Fatalf("params: %v", err)
		}
		fmt.Println("parameters written to", *out)
	}
}

func runSetup(args []string) {
	fs, c := newFlagSet("setup")
	name := fs.String("p", "N256Q30", "preset name or parameter file")
	fs.Parse(args)
	c.apply()
	defer c.done()

	p, err := params.Resolve(*name)
	if err != nil {
		log.Fatalf("params: %v", err)
	}
	s, err := ibe.NewScheme(p)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	var (
		mpk *ibe.MasterPublicKey
		msk *ibe.MasterSecretKey
	)
	err = prof.Time("setup", func() error {
		mpk, msk, err = s.Setup()
		return err
	})
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	pk := keys.NewPublicKey(p, mpk.A)
	if err := keys.Save(c.path("public.json"), pk); err != nil {
		log.Fatalf("setup: %v", err)
	}
	if err := keys.SaveSecret(c.path("master.json"), keys.NewMasterSecret(mpk.A, msk.T)); err != nil {
		log.Fatalf("setup: %v", err)
	}
	fmt.Printf("keys written to %s (fingerprint %s)\n", *c.dir, pk.Fingerprint[:16])
}

// loadMaster reads the public key and, when withSecret is set, the trapdoor.
func loadMaster(c common, withSecret bool) (*keys.PublicKey, *ibe.MasterPublicKey, *ibe.MasterSecretKey) {
	defer prof.Track(time.Now(), "load keys")
	var pk keys.PublicKey
	if err := keys.Load(c.path("public.json"), &pk); err != nil {
		log.Fatalf("load public key: %v", err)
	}
	mpk, err := pk.MasterPublicKey()
	if err != nil {
		log.Fatalf("load public key: %v", err)
	}
	if !withSecret {
		return &pk, mpk, nil
	}
	var ms keys.MasterSecret
	if err := keys.Load(c.path("master.json"), &ms); err != nil {
		log.Fatalf("load master key: %v", err)
	}
	T, err := ms.Basis(&pk)
	if err != nil {
		log.Fatalf("load master key: %v", err)
	}
	return &pk, mpk, &ibe.MasterSecretKey{T: T}
}

func runExtract(args []string) {
	fs, c := newFlagSet("extract")
	id := fs.String("id", "", "identity")
	out := fs.String("o", "", "output file")
	fs.Parse(args)
	if *id == "" {
		log.Fatal("extract: -id is required")
	}
	c.apply()
	defer c.done()

	_, mpk, msk := loadMaster(c, true)
	s, err := ibe.NewScheme(mpk.Params)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	var sk *ibe.SecretKey
	err = prof.Time("extract", func() error {
		sk, err = s.KeyGen(msk, mpk, *id)
		return err
	})
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	path := *out
	if path == "" {
		path = c.path(*id + ".key.json")
	}
	if err := keys.SaveSecret(path, keys.NewIdentityKey(mpk.Params, sk)); err != nil {
		log.Fatalf("extract: %v", err)
	}
	fmt.Println("identity key written to", path)
}

func runEncrypt(args []string) {
	fs, c := newFlagSet("encrypt")
	id := fs.String("id", "", "identity")
	msg := fs.String("m", "", "message")
	out := fs.String("o", "", "output file")
	fs.Parse(args)
	if *id == "" || *msg == "" {
		log.Fatal("encrypt: -id and -m are required")
	}
	c.apply()
	defer c.done()

	_, mpk, _ := loadMaster(c, false)
	s, err := ibe.NewScheme(mpk.Params)
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	var ct *ibe.Ciphertext
	err = prof.Time("encrypt", func() error {
		ct, err = s.Encrypt(mpk, *id, bytesToBits([]byte(*msg)))
		return err
	})
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	path := *out
	if path == "" {
		path = c.path("ciphertext.json")
	}
	if err := keys.Save(path, keys.NewCiphertext(mpk.Params, *id, ct)); err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	fmt.Println("ciphertext written to", path)
}

func runDecrypt(args []string) {
	fs, c := newFlagSet("decrypt")
	keyPath := fs.String("key", "", "identity key file")
	ctPath := fs.String("ct", "", "ciphertext file")
	fs.Parse(args)
	if *keyPath == "" {
		log.Fatal("decrypt: -key is required")
	}
	if *ctPath == "" {
		*ctPath = c.path("ciphertext.json")
	}
	c.apply()
	defer c.done()

	var kf keys.IdentityKey
	if err := keys.Load(*keyPath, &kf); err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	p, sk, err := kf.SecretKey()
	if err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	var cf keys.Ciphertext
	if err := keys.Load(*ctPath, &cf); err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	if cf.Identity != sk.Identity {
		log.Printf("warn: ciphertext is addressed to %q, key belongs to %q", cf.Identity, sk.Identity)
	}
	_, ct, err := cf.Decode()
	if err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	s, err := ibe.NewScheme(p)
	if err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	var pt ibe.Plaintext
	err = prof.Time("decrypt", func() error {
		pt, err = s.Decrypt(sk, ct)
		return err
	})
	if err != nil {
		log.Fatalf("decrypt: %v", err)
	}
	fmt.Printf("%s\n", bitsToBytes(pt))
}

func runSign(args []string) {
	fs, c := newFlagSet("sign")
	msg := fs.String("m", "", "message")
	out := fs.String("o", "", "output file")
	fs.Parse(args)
	if *msg == "" {
		log.Fatal("sign: -m is required")
	}
	c.apply()
	defer c.done()

	_, mpk, msk := loadMaster(c, true)
	s, err := signature.NewScheme(mpk.Params)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	sk := &signature.SigningKey{A: mpk.A, T: msk.T}
	var sig *signature.Signature
	err = prof.Time("sign", func() error {
		sig, err = s.Sign(sk, []byte(*msg))
		return err
	})
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	path := *out
	if path == "" {
		path = c.path("signature.json")
	}
	file := keys.NewSignature(mpk.Params, sig)
	if err := keys.Save(path, file); err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Printf("sign: inf=%d l2=%.1f\n", file.Norm.Inf, file.Norm.L2)
	fmt.Println("signature written to", path)
}

func runVerify(args []string) {
	fs, c := newFlagSet("verify")
	msg := fs.String("m", "", "message")
	sigPath := fs.String("sig", "", "signature file")
	fs.Parse(args)
	if *sigPath == "" {
		*sigPath = c.path("signature.json")
	}
	c.apply()
	defer c.done()

	pk, _, _ := loadMaster(c, false)
	vk, err := pk.VerificationKey()
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	var sf keys.Signature
	if err := keys.Load(*sigPath, &sf); err != nil {
		log.Fatalf("verify: %v", err)
	}
	_, sig, err := sf.Decode()
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	s, err := signature.NewScheme(vk.Params)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	var ok bool
	prof.Time("verify", func() error {
		ok = s.Verify(vk, []byte(*msg), sig)
		return nil
	})
	if !ok {
		c.done()
		log.Fatal("verify failed")
	}
	fmt.Println("signature verified")
}

// bytesToBits expands b least significant bit first.
func bytesToBits(b []byte) ibe.Plaintext {
	pt := make(ibe.Plaintext, 8*len(b))
	for i, c := range b {
		for j := 0; j < 8; j++ {
			pt[8*i+j] = (c >> j) & 1
		}
	}
	return pt
}

// bitsToBytes packs pt back into bytes and drops the zero padding.
func bitsToBytes(pt ibe.Plaintext) string {
	out := make([]byte, len(pt)/8)
	for i := range out {
		for j := 0; j < 8; j++ {
			out[i] |= pt[8*i+j] << j
		}
	}
	return strings.TrimRight(string(out), "\x00")
}
