// Package config provides the tlsutil configuration model and its YAML loader.
//
// The document has four sections: logging, metrics, monitor (the certificate
// expiry monitor) and tracing (the tracer factory selection). Values may
// reference the environment with ${VAR} or ${VAR:-default}; "$$" escapes a
// literal dollar sign.
//
//	logging:
//	  level: ${TLSUTIL_LOG_LEVEL:-info}
//	monitor:
//	  warningDays: 14
//	  certificates:
//	    - name: upstream
//	      certFile: certs/upstream.pem
//
// Load a file and validate it:
//
//	cfg, err := config.LoadConfig("tlsutil.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    return err
//	}
package config
