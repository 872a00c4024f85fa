// Package vault reads certificates from a HashiCorp Vault PKI secrets engine.
//
// The client is read-only. It fetches a certificate by serial from
// <mount>/cert/<serial> and never issues, signs or revokes anything, so a
// token with read access to the cert paths is enough:
//
//	path "pki/cert/*" {
//	    capabilities = ["read"]
//	}
//
// # Configuration
//
//	client, err := vault.New(&vault.Config{
//	    Address: "https://vault.example.com:8200",
//	    Token:   os.Getenv("VAULT_TOKEN"),
//	}, logger)
//
//	cert, err := client.FetchCertificate(ctx, "pki", "ca")
//
// Address and Token fall back to VAULT_ADDR and VAULT_TOKEN when empty.
// The client satisfies tls.CertificateFetcher, which lets the expiry monitor
// watch certificates that only live in Vault.
//
// # Testing
//
// For local testing, start Vault in dev mode and enable PKI:
//
//	vault server -dev -dev-root-token-id=myroot
//	vault secrets enable pki
//	vault write pki/root/generate/internal common_name="Test CA" ttl=87600h
package vault
