package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CDMS API",
        "description": "Coordination office API: school directory, visit scheduling, summary reports, visitor feedback.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Staff authentication"},
        {"name": "Schools", "description": "School directory"},
        {"name": "Visits", "description": "Site visit scheduling"},
        {"name": "Reports", "description": "Summary report jobs"},
        {"name": "Feedback", "description": "Visitor feedback"},
        {"name": "Dashboard", "description": "Office landing counts"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Staff login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current refresh token",
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "User", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools": {
            "get": {
                "tags": ["Schools"],
                "summary": "List schools",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Schools", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schools"],
                "summary": "Create school",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation errors"},
                    "409": {"description": "Name already in use"}
                }
            }
        },
        "/schools/names": {
            "get": {
                "tags": ["Schools"],
                "summary": "List school names",
                "responses": {
                    "200": {"description": "Names"}
                }
            }
        },
        "/schools/{id}": {
            "get": {
                "tags": ["Schools"],
                "summary": "Get school detail",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "School"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Schools"],
                "summary": "Update school",
                "responses": {
                    "200": {"description": "Updated"},
                    "400": {"description": "Validation errors"},
                    "409": {"description": "Name already in use"}
                }
            },
            "delete": {
                "tags": ["Schools"],
                "summary": "Delete school",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "School has visits"}
                }
            }
        },
        "/visits": {
            "get": {
                "tags": ["Visits"],
                "summary": "List visits",
                "parameters": [
                    {"name": "school_id", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Visits"}
                }
            },
            "post": {
                "tags": ["Visits"],
                "summary": "Schedule a visit",
                "responses": {
                    "201": {"description": "Scheduled"},
                    "400": {"description": "Validation errors"},
                    "409": {"description": "Slot already taken"}
                }
            }
        },
        "/visits/{id}": {
            "get": {
                "tags": ["Visits"],
                "summary": "Get visit detail",
                "responses": {
                    "200": {"description": "Visit"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Visits"],
                "summary": "Cancel a visit",
                "responses": {
                    "204": {"description": "Cancelled"}
                }
            }
        },
        "/visits/{id}/status": {
            "patch": {
                "tags": ["Visits"],
                "summary": "Update visit status",
                "responses": {
                    "200": {"description": "Updated"},
                    "400": {"description": "Invalid status"}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List report jobs",
                "responses": {
                    "200": {"description": "Jobs"}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Request a summary report",
                "responses": {
                    "201": {"description": "Job queued"},
                    "400": {"description": "Invalid report request"}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get report job status",
                "responses": {
                    "200": {"description": "Job"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/reports/download/{filename}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a report by filename",
                "produces": ["application/octet-stream"],
                "responses": {
                    "200": {"description": "Report file"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/reports/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a report via signed token",
                "produces": ["application/octet-stream"],
                "responses": {
                    "200": {"description": "Report file"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/feedback": {
            "get": {
                "tags": ["Feedback"],
                "summary": "List feedback entries",
                "responses": {
                    "200": {"description": "Entries"}
                }
            },
            "post": {
                "tags": ["Feedback"],
                "summary": "Submit visitor feedback",
                "responses": {
                    "201": {"description": "Stored"},
                    "400": {"description": "Validation errors"}
                }
            }
        },
        "/feedback/{id}": {
            "delete": {
                "tags": ["Feedback"],
                "summary": "Delete a feedback entry",
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard counts",
                "responses": {
                    "200": {"description": "Counts"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
