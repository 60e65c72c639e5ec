package genai

// Prompt templates for the direct chat-completion backend. Each asks for a
// bare JSON array so the response survives extractJSON unchanged.

const systemPrompt = `You are an industrial IoT onboarding assistant. You read device
documentation and answer with JSON only. Never include prose outside the JSON.`

const rulesPromptTemplate = `Read the device documentation below and propose monitoring rules.
Answer with a JSON array. Each element:
{"name": string, "description": string, "metric": string,
 "operator": one of ">" "<" "=" "!=" ">=" "<=",
 "value": string, "actionType": "notification" or "report",
 "priority": "LOW" | "MEDIUM" | "HIGH",
 "category": "temperature" | "connectivity" | "safety" | "power" | "efficiency" | "cost"}
Propose between 3 and 8 rules grounded in the documentation.

DOCUMENTATION:
%s`

const maintenancePromptTemplate = `Read the device documentation below and propose a maintenance schedule.
Answer with a JSON array. Each element:
{"taskName": string, "description": string,
 "frequency": "daily" | "weekly" | "monthly" | "quarterly" | "semi-annual" | "annual",
 "priority": "LOW" | "MEDIUM" | "HIGH", "estimatedMins": number}
Propose between 2 and 6 tasks grounded in the documentation.

DOCUMENTATION:
%s`

const safetyPromptTemplate = `Read the device documentation below and extract safety precautions.
Answer with a JSON array. Each element:
{"title": string, "description": string,
 "severity": "LOW" | "MEDIUM" | "HIGH" | "CRITICAL",
 "category": string, "mitigation": string,
 "aboutReaction": string, "recommendedPpe": string}
Extract every precaution the documentation states or clearly implies.

DOCUMENTATION:
%s`
