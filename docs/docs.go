// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "description": "REST API for the hostsweep host discovery and TCP port scanner.",
    "title": "hostsweep API",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "1.0"
  },
  "basePath": "/api/v1",
  "schemes": [
    "http"
  ],
  "paths": {
    "/scans": {
      "post": {
        "consumes": [
          "application/json"
        ],
        "produces": [
          "application/json"
        ],
        "summary": "Create a new scan task",
        "description": "Queues a batch scan. Each host is pinged once; online hosts are connect-scanned across the port range and every host is reverse resolved. Poll GET /scans/{id} for the result.",
        "operationId": "createScan",
        "tags": [
          "Scans"
        ],
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {
              "$ref": "#/definitions/CreateScanRequest"
            }
          }
        ],
        "responses": {
          "202": {
            "description": "Scan task accepted",
            "schema": {
              "$ref": "#/definitions/ScanAcceptedResponse"
            }
          },
          "400": {
            "description": "Invalid hosts, port range or concurrency",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "401": {
            "description": "Unauthorized",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "429": {
            "description": "Rate limit exceeded",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "500": {
            "description": "Internal server error",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          }
        }
      }
    },
    "/scans/{id}": {
      "get": {
        "produces": [
          "application/json"
        ],
        "summary": "Get scan status and results",
        "description": "Returns the task snapshot. Once completed, results maps each host to State, Hostname, Alias and Open Ports in submission order.",
        "operationId": "getScan",
        "tags": [
          "Scans"
        ],
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "parameters": [
          {
            "type": "string",
            "format": "uuid",
            "description": "Scan Task ID (UUID v4)",
            "name": "id",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {
            "description": "Scan task snapshot",
            "schema": {
              "$ref": "#/definitions/ScanTask"
            }
          },
          "400": {
            "description": "Malformed task identifier",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "401": {
            "description": "Unauthorized",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "404": {
            "description": "Task not found",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "429": {
            "description": "Rate limit exceeded",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          },
          "500": {
            "description": "Internal server error",
            "schema": {
              "$ref": "#/definitions/ErrorResponse"
            }
          }
        }
      }
    }
  },
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  },
  "definitions": {
    "ScanAcceptedResponse": {
      "type": "object",
      "properties": {
        "id": {
          "type": "string",
          "format": "uuid",
          "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"
        },
        "status": {
          "type": "string",
          "enum": [
            "pending"
          ],
          "example": "pending"
        }
      }
    },
    "CreateScanRequest": {
      "type": "object",
      "required": [
        "hosts",
        "ports"
      ],
      "properties": {
        "hosts": {
          "type": "array",
          "items": {
            "type": "string"
          },
          "example": [
            "192.0.2.10",
            "192.0.2.11"
          ]
        },
        "ports": {
          "type": "string",
          "example": "1-1024"
        },
        "concurrency": {
          "type": "integer",
          "minimum": 1,
          "example": 100
        }
      }
    },
    "ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {
          "type": "string",
          "example": "task not found"
        }
      }
    },
    "HostResult": {
      "type": "object",
      "properties": {
        "State": {
          "type": "string",
          "enum": [
            "Online",
            "Offline"
          ],
          "example": "Online"
        },
        "Hostname": {
          "type": "string",
          "example": "web.example"
        },
        "Alias": {
          "type": "array",
          "items": {
            "type": "string"
          }
        },
        "Open Ports": {
          "type": "array",
          "items": {
            "type": "integer"
          },
          "example": [
            22,
            443
          ]
        }
      }
    },
    "ScanTask": {
      "type": "object",
      "properties": {
        "id": {
          "type": "string",
          "format": "uuid",
          "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"
        },
        "status": {
          "type": "string",
          "enum": [
            "pending",
            "running",
            "completed",
            "failed"
          ],
          "example": "completed"
        },
        "hosts": {
          "type": "array",
          "items": {
            "type": "string"
          }
        },
        "ports": {
          "type": "string",
          "example": "1-1024"
        },
        "concurrency": {
          "type": "integer",
          "example": 100
        },
        "results": {
          "type": "object",
          "additionalProperties": {
            "$ref": "#/definitions/HostResult"
          }
        },
        "created_at": {
          "type": "string",
          "format": "date-time",
          "example": "2024-01-02T15:04:05Z"
        },
        "completed_at": {
          "type": "string",
          "format": "date-time"
        },
        "error": {
          "type": "string",
          "example": "invalid port range"
        }
      }
    }
  }
}
`

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}
