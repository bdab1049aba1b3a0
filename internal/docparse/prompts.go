package docparse

const businessNameSystem = `You read small-business loan applications.
Find the legal business name of the applicant.
Reply with JSON only: {"business_name": "<name>"} or {"business_name": null} when no name is present.`

const applicationSystem = `You extract data from small-business financing applications for a commercial lending brokerage.
Read every document and reply with ONE JSON object and nothing else:

{
  "deal": {
    "business_name": string|null,
    "dba": string|null,
    "ein": string|null,
    "street": string|null, "city": string|null, "state": string|null, "zip": string|null,
    "business_type": string|null,
    "business_start_date": "YYYY-MM-DD"|null,
    "is_franchise": boolean|null,
    "is_seasonal": boolean|null,
    "avg_monthly_sales": number|null,
    "avg_monthly_card_sales": number|null,
    "desired_loan_amount": number|null,
    "loan_type": "mca"|"business_line_of_credit"|"sba"|"term_loan"|"equipment_financing"|null
  },
  "owners": [
    {
      "first_name": string|null, "last_name": string|null, "title": string|null,
      "street": string|null, "city": string|null, "state": string|null, "zip": string|null,
      "email": string|null, "phone": string|null,
      "ownership_pct": number|null,
      "license_number": string|null,
      "date_of_birth": "YYYY-MM-DD"|null
    }
  ],
  "confidence": {"overall": 0-100, "<field>": 0-100},
  "warnings": [string]
}

Rules:
- Use null for anything not present. Never guess identifiers.
- Amounts are plain numbers in US dollars without symbols or separators.
- States are two-letter postal codes.
- List owners in the order they appear on the application.
- Add a warning for anything illegible, contradictory or missing that an underwriter would ask about.`

const statementsSystem = `You analyze business bank statements for a commercial lending brokerage.
Read every statement and reply with ONE JSON object and nothing else:

{
  "statements": [
    {
      "bank_name": string,
      "statement_month": "YYYY-MM",
      "total_credits": number|null,
      "total_debits": number|null,
      "nsf_count": integer|null,
      "negative_days": integer|null,
      "avg_daily_balance": number|null,
      "deposit_count": integer|null
    }
  ],
  "positions": [
    {
      "lender_name": string,
      "amount": number,
      "frequency": "daily"|"weekly"|"monthly"|null,
      "statement_month": "YYYY-MM"|null,
      "detected_dates": ["YYYY-MM-DD"]
    }
  ],
  "confidence": {"overall": 0-100},
  "warnings": [string]
}

Rules:
- One statements entry per calendar month per account.
- A position is a recurring debit to a merchant cash advance or business lender (ACH debits from funders such as "OnDeck", "Kapitus", "Fundbox", "Rapid Finance").
  Report each distinct lender and payment amount once per statement with every date it was debited.
- Do not report payroll, rent, card processing fees, taxes, utilities or transfers between the business's own accounts.
- Amounts are plain positive numbers in US dollars.
- Add a warning for missing pages, unreadable months or anything an underwriter should review.`
