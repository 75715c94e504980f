// Package swagger registers the OpenAPI document for the Veritas API.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Veritas Maintainers",
            "url": "https://github.com/raysh454/veritas"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}
                }
            }
        },
        "/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Create an idle session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/server.SessionResponse"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get the session state with overlays",
                "parameters": [{"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Reset and remove a session",
                "parameters": [{"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/image": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Select an image and start extraction and analysis",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"type": "file", "description": "Image file", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/server.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Reset the session to idle",
                "parameters": [{"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/preview/{handle}": {
            "get": {
                "produces": ["image/jpeg", "image/png", "image/webp"],
                "tags": ["sessions"],
                "summary": "Serve the preview image while its handle is live",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Preview handle", "name": "handle", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/report": {
            "get": {
                "produces": ["text/html"],
                "tags": ["sessions"],
                "summary": "Render the HTML forensic report",
                "parameters": [{"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/ws/sessions/{id}": {
            "get": {
                "tags": ["sessions"],
                "summary": "Stream session state snapshots over WebSocket",
                "parameters": [{"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "server.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "session not found"}}
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ok"}}
        },
        "geometry.Overlay": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "feature": {"type": "string"},
                "description": {"type": "string"},
                "top": {"type": "number"},
                "left": {"type": "number"},
                "height": {"type": "number"},
                "width": {"type": "number"}
            }
        },
        "model.EvidencePoint": {
            "type": "object",
            "properties": {
                "feature": {"type": "string"},
                "description": {"type": "string"},
                "reasoning": {"type": "string"},
                "boundingBox": {"type": "array", "items": {"type": "number"}}
            }
        },
        "model.AnalysisResult": {
            "type": "object",
            "properties": {
                "verdict": {"type": "string", "enum": ["Real", "AI-Generated", "Tampered", "Uncertain"]},
                "confidence": {"type": "integer"},
                "summary": {"type": "string"},
                "evidence": {"type": "array", "items": {"$ref": "#/definitions/model.EvidencePoint"}}
            }
        },
        "metadata.Result": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["ok", "unsupported", "degraded"]},
                "record": {"type": "object", "additionalProperties": true},
                "diagnostic": {"type": "string"}
            }
        },
        "server.SessionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "phase": {"type": "string", "enum": ["idle", "analyzing", "ready", "failed"]},
                "isLoading": {"type": "boolean"},
                "fileName": {"type": "string"},
                "previewId": {"type": "string"},
                "previewUrl": {"type": "string"},
                "error": {"type": "string"},
                "result": {"$ref": "#/definitions/model.AnalysisResult"},
                "metadata": {"$ref": "#/definitions/metadata.Result"},
                "overlays": {"type": "array", "items": {"$ref": "#/definitions/geometry.Overlay"}},
                "generation": {"type": "integer"},
                "updatedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Veritas API",
	Description:      "Image forensics sessions: upload an image, follow extraction and analysis, fetch the report.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
