package falsepositive

import (
	"encoding/base64"
	"math"
	"strings"
	"unicode"

	"github.com/waftester/scantriage/pkg/finding"
	"github.com/waftester/scantriage/pkg/jsonutil"
	"github.com/waftester/scantriage/pkg/regexcache"
)

func (f *Filter) checkSensitive(c *finding.Candidate) {
	switch c.Subkind {
	case "credit_card":
		f.checkCard(c)
	case "email":
		checkEmail(c)
	case "ssn":
		checkSSN(c)
	case "jwt":
		checkJWT(c)
	case "password":
		f.checkPassword(c)
	case "basic_auth":
		checkBasicAuth(c)
	case "private_key":
		// Structure is certain; only the surroundings can make it benign.
	default:
		f.checkToken(c)
	}
	if docContext(c.Context) {
		c.Flag("documentation or sample context")
	}
}

// Card numbers

// testCards are published processor test numbers.
var testCards = map[string]bool{
	"4111111111111111": true, "4242424242424242": true, "4012888888881881": true,
	"4000056655665556": true, "4222222222222": true, "5555555555554444": true,
	"5105105105105100": true, "5200828282828210": true, "2223003122003222": true,
	"378282246310005": true, "371449635398431": true, "378734493671000": true,
	"6011111111111117": true, "6011000990139424": true, "3056930009020004": true,
	"30569309025904": true, "38520000023237": true, "3566002020360505": true,
	"3530111333300000": true, "6200000000000005": true,
}

func (f *Filter) checkCard(c *finding.Candidate) {
	digits := onlyDigits(c.Value)
	switch {
	case len(digits) < f.th.CardMinDigits || len(digits) > f.th.CardMaxDigits:
		c.Demote(finding.ConfidenceLow, "implausible card length")
		c.Flag("not a card number: length")
	case !luhn(digits):
		c.Demote(finding.ConfidenceLow, "fails Luhn checksum")
		c.Flag("not a card number: checksum")
	case cardIssuer(digits) == "":
		c.Demote(finding.ConfidenceLow, "no known issuer prefix")
		c.Flag("not a card number: issuer prefix")
	case testCards[digits] || repeated(digits):
		c.Flag("known test card number")
	default:
		c.Promote(finding.ConfidenceHigh, "passes Luhn with "+cardIssuer(digits)+" prefix")
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhn reports whether digits (ASCII only) pass the mod-10 checksum.
func luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func cardIssuer(digits string) string {
	prefix := func(n int) int {
		if len(digits) < n {
			return -1
		}
		v := 0
		for _, r := range digits[:n] {
			v = v*10 + int(r-'0')
		}
		return v
	}
	switch p2, p3, p4, p6 := prefix(2), prefix(3), prefix(4), prefix(6); {
	case digits[0] == '4':
		return "Visa"
	case p2 >= 51 && p2 <= 55, p4 >= 2221 && p4 <= 2720:
		return "Mastercard"
	case p2 == 34 || p2 == 37:
		return "American Express"
	case p4 == 6011, p2 == 65, p3 >= 644 && p3 <= 649, p6 >= 622126 && p6 <= 622925:
		return "Discover"
	case p2 == 36, p2 == 38, p3 >= 300 && p3 <= 305:
		return "Diners Club"
	case p4 >= 3528 && p4 <= 3589:
		return "JCB"
	case p2 == 62:
		return "UnionPay"
	case p2 == 50, p2 >= 56 && p2 <= 69:
		return "Maestro"
	}
	return ""
}

func repeated(s string) bool {
	return s != "" && strings.Count(s, s[:1]) == len(s)
}

// Email addresses

var (
	emailLocal  = regexcache.MustCompile(`^[a-z0-9!#$%&'*+/=?^_{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_{|}~-]+)*$`, true)
	emailDomain = regexcache.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}$`, true)
	retinaAsset = regexcache.MustCompile(`@\d(?:\.\d+)?x[.-]`, true)
)

var assetExtensions = []string{
	"png", "jpg", "jpeg", "gif", "svg", "webp", "avif", "ico", "bmp",
	"css", "js", "mjs", "map", "woff", "woff2", "ttf", "eot", "otf", "mp4", "webm",
}

var placeholderDomains = []string{
	"example.com", "example.org", "example.net", "example.edu", "test.com",
	"domain.com", "email.com", "yourdomain.com", "your-domain.com",
	"yourcompany.com", "company.com", "mail.com", "sample.com", "foo.com",
	"acme.com", "sentry.io", "wixpress.com",
}

var placeholderTLDs = []string{"example", "test", "invalid", "localhost", "local"}

var placeholderLocals = []string{
	"user", "username", "name", "email", "your", "youremail", "your.email",
	"yourname", "your.name", "someone", "somebody", "john.doe", "jane.doe",
	"johndoe", "janedoe", "foo", "bar", "test", "demo",
}

func checkEmail(c *finding.Candidate) {
	addr := strings.ToLower(c.Value)
	local, domain, ok := strings.Cut(addr, "@")
	tld := domain[strings.LastIndexByte(domain, '.')+1:]

	switch {
	case retinaAsset.MatchString(addr) || containsFold(assetExtensions, tld):
		c.Demote(finding.ConfidenceLow, "asset file name, not an address")
		c.Flag("asset file name")
		return
	case !ok || len(local) > 64 || len(domain) > 253 || !emailLocal.MatchString(local) || !emailDomain.MatchString(domain):
		c.Demote(finding.ConfidenceLow, "fails address grammar")
		c.Flag("malformed address")
		return
	}

	if containsFold(placeholderTLDs, tld) || hasDomain(domain, placeholderDomains) {
		c.Flag("placeholder domain " + domain)
	}
	if containsFold(placeholderLocals, local) {
		c.Flag("placeholder mailbox " + local)
	}
	if strings.HasPrefix(local, "noreply") || strings.HasPrefix(local, "no-reply") || strings.HasPrefix(local, "donotreply") {
		c.Flag("no-reply mailbox")
	}
}

func hasDomain(domain string, list []string) bool {
	for _, d := range list {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// Social security numbers

var sampleSSNs = map[string]bool{
	"123-45-6789": true, "078-05-1120": true, "219-09-9999": true, "111-11-1111": true,
	"000-00-0000": true, "999-99-9999": true, "987-65-4320": true,
}

func checkSSN(c *finding.Candidate) {
	v := c.Value
	if sampleSSNs[v] {
		c.Flag("well-known sample SSN")
	}
	digits := onlyDigits(v)
	if len(digits) != 9 {
		c.Demote(finding.ConfidenceLow, "not nine digits")
		return
	}
	area, group, serial := digits[:3], digits[3:5], digits[5:]
	if area == "000" || area == "666" || area[0] == '9' || group == "00" || serial == "0000" {
		c.Demote(finding.ConfidenceLow, "invalid SSN area, group or serial")
		c.Flag("not an issuable SSN")
	}
}

// Tokens and keys

var placeholderWords = []string{
	"example", "sample", "dummy", "placeholder", "changeme", "change_me", "redacted",
	"your_", "your-", "yourkey", "insert", "replace", "xxxx", "****", "test_key",
	"fake", "null", "undefined", "todo", "<", "{{", "${", "%s", "process.env",
}

func placeholder(v string) (string, bool) {
	lower := strings.ToLower(v)
	for _, w := range placeholderWords {
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

func (f *Filter) checkToken(c *finding.Candidate) {
	v := c.Value
	if w, ok := placeholder(v); ok {
		c.Flag("placeholder token (" + w + ")")
	}
	if len(v) < f.th.MinTokenLength {
		c.Demote(finding.ConfidenceLow, "token shorter than minimum length")
	}
	if e := entropy(v); e < f.th.MinTokenEntropy {
		c.Demote(finding.ConfidenceLow, "low-entropy token")
		if e < 2 {
			c.Flag("repetitive token")
		}
	}
	if allOneClass(v) {
		c.Demote(finding.ConfidenceLow, "token uses a single character class")
	}
}

// entropy returns the Shannon entropy of s in bits per character.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	n := 0
	for _, r := range s {
		freq[r]++
		n++
	}
	var h float64
	for _, count := range freq {
		p := float64(count) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

// allOneClass reports identifiers such as "getUserAccountSettings" or
// "1234567890123456789012" that match key patterns but are not keys.
func allOneClass(s string) bool {
	var letters, digits int
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return letters == 0 || digits == 0
}

// JWTs

func checkJWT(c *finding.Candidate) {
	head, _, ok := strings.Cut(c.Value, ".")
	if !ok {
		c.Demote(finding.ConfidenceLow, "not a three-part token")
		return
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(head, "="))
	if err != nil {
		c.Demote(finding.ConfidenceLow, "header is not base64url")
		c.Flag("not a JWT")
		return
	}
	var hdr struct {
		Alg string `json:"alg"`
		Typ string `json:"typ"`
	}
	if err := jsonutil.Unmarshal(raw, &hdr); err != nil || hdr.Alg == "" {
		c.Demote(finding.ConfidenceLow, "header lacks alg")
		c.Flag("not a JWT")
		return
	}
	c.Promote(finding.ConfidenceHigh, "valid JWT header (alg "+hdr.Alg+")")
	if strings.EqualFold(hdr.Alg, "none") {
		c.Severity = c.Severity.Max(finding.Critical)
		c.Reasons = append(c.Reasons, "unsigned token (alg none)")
	}
}

// Basic auth

func checkBasicAuth(c *finding.Candidate) {
	raw, err := base64.StdEncoding.DecodeString(c.Value)
	if err != nil {
		c.Demote(finding.ConfidenceLow, "credentials are not base64")
		return
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		c.Demote(finding.ConfidenceLow, "decoded credentials lack user:password")
		return
	}
	c.Promote(finding.ConfidenceHigh, "decodes to user:password")
	if _, ph := placeholder(user + ":" + pass); ph || pass == "" {
		c.Flag("placeholder credentials")
	}
}

// Passwords

var passwordFieldNames = []string{
	"password", "passwd", "pwd", "pass", "new-password", "current-password",
	"new_password", "old_password", "confirm", "confirm_password", "password_confirmation",
	"text", "hidden", "true", "false", "null", "none", "required", "input", "field",
}

var passwordMarkup = regexcache.MustCompile(`type\s*=\s*["']?password|autocomplete\s*=\s*["']?(?:new|current)-password|<input\b|<label\b|placeholder\s*=`, true)

func (f *Filter) checkPassword(c *finding.Candidate) {
	v := strings.Trim(c.Value, `"'`)
	switch {
	case containsFold(passwordFieldNames, v):
		c.Demote(finding.ConfidenceLow, "field name, not a value")
		c.Flag("password field name")
	case masked(v):
		c.Demote(finding.ConfidenceLow, "masked value")
		c.Flag("masked password")
	case len(v) < f.th.MinPasswordLength:
		c.Demote(finding.ConfidenceLow, "value shorter than minimum password length")
	}
	if w, ok := placeholder(v); ok {
		c.Flag("placeholder password (" + w + ")")
	}
	if passwordMarkup.MatchString(c.Context) {
		c.Flag("password form markup")
	}
}

func masked(v string) bool {
	if v == "" {
		return true
	}
	for _, r := range v {
		if r != '*' && r != '•' && r != 'x' && r != 'X' && r != '#' && r != '.' {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
